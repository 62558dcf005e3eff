package person

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned by Exec when a chained helper received bad input.
var ErrInvalidQuery = errors.New("invalid query")

// Field names as stored in the collection.
const (
	FieldID            = "_id"
	FieldName          = "name"
	FieldAge           = "age"
	FieldFavoriteFoods = "favoriteFoods"
)

var (
	sortableFields   = map[string]bool{FieldID: true, FieldName: true, FieldAge: true}
	selectableFields = map[string]bool{FieldID: true, FieldName: true, FieldAge: true, FieldFavoriteFoods: true}
)

// Order is a sort direction using the store's 1 / -1 convention.
type Order int

const (
	Ascending  Order = 1
	Descending Order = -1
)

type SortKey struct {
	Field string
	Order Order
}

// Filter selects people. Nil fields do not constrain the result; a set
// field always does, so ByName("") matches only people with an empty name.
type Filter struct {
	Name         *string
	FavoriteFood *string
	MinAge       *int
	MaxAge       *int
}

// ByName matches people whose name equals name.
func ByName(name string) Filter { return Filter{Name: &name} }

// ByFood matches people whose favoriteFoods contains food.
func ByFood(food string) Filter { return Filter{FavoriteFood: &food} }

// Projection lists the fields to keep or to hide. At most one of Include and
// Exclude holds anything other than "_id".
type Projection struct {
	Include []string
	Exclude []string
}

func (p Projection) IsZero() bool { return len(p.Include) == 0 && len(p.Exclude) == 0 }

// QuerySpec is the resolved form of a chained query that stores execute.
type QuerySpec struct {
	Filter     Filter
	Sorts      []SortKey
	Limit      int64
	Skip       int64
	Projection Projection
}

// Executor runs resolved queries. Repositories implement it.
type Executor interface {
	Find(ctx context.Context, spec QuerySpec) ([]*Person, error)
}

// Query builds a find with chained helpers. Nothing touches the store until
// Exec is called; errors from helpers are kept and reported by Exec.
type Query struct {
	spec QuerySpec
	err  error
	exec Executor
}

// Find starts a query matching f.
func Find(f Filter) *Query {
	return &Query{spec: QuerySpec{Filter: f}}
}

// On binds the query to an executor.
func (q *Query) On(e Executor) *Query {
	q.exec = e
	return q
}

// Sort accepts a space separated list of fields, "-" marks descending order:
// "name", "-age name".
func (q *Query) Sort(spec string) *Query {
	for _, tok := range strings.Fields(spec) {
		order := Ascending
		if strings.HasPrefix(tok, "-") {
			order = Descending
			tok = tok[1:]
		} else if strings.HasPrefix(tok, "+") {
			tok = tok[1:]
		}
		q.SortBy(tok, order)
	}
	return q
}

func (q *Query) SortBy(field string, order Order) *Query {
	if !sortableFields[field] {
		q.fail("cannot sort by %q", field)
		return q
	}
	if order != Ascending && order != Descending {
		q.fail("sort order for %q must be 1 or -1, got %d", field, order)
		return q
	}
	q.spec.Sorts = append(q.spec.Sorts, SortKey{Field: field, Order: order})
	return q
}

// Limit caps the number of results; 0 means no limit.
func (q *Query) Limit(n int64) *Query {
	if n < 0 {
		q.fail("limit must not be negative, got %d", n)
		return q
	}
	q.spec.Limit = n
	return q
}

func (q *Query) Skip(n int64) *Query {
	if n < 0 {
		q.fail("skip must not be negative, got %d", n)
		return q
	}
	q.spec.Skip = n
	return q
}

// Select sets the projection: "name favoriteFoods" keeps only those fields,
// "-age" hides age. Inclusion and exclusion cannot be mixed except for "-_id".
func (q *Query) Select(spec string) *Query {
	var p Projection
	for _, tok := range strings.Fields(spec) {
		exclude := strings.HasPrefix(tok, "-")
		field := strings.TrimLeft(tok, "-+")
		if !selectableFields[field] {
			q.fail("cannot select %q", field)
			return q
		}
		if exclude {
			p.Exclude = append(p.Exclude, field)
		} else {
			p.Include = append(p.Include, field)
		}
	}
	if len(p.Include) > 0 {
		for _, f := range p.Exclude {
			if f != FieldID {
				q.fail("projection cannot mix inclusion and exclusion of %q", f)
				return q
			}
		}
	}
	q.spec.Projection = p
	return q
}

func (q *Query) fail(format string, args ...interface{}) {
	if q.err == nil {
		q.err = fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidQuery}, args...)...)
	}
}

// Build returns the resolved spec or the first helper error.
func (q *Query) Build() (QuerySpec, error) {
	if q.err != nil {
		return QuerySpec{}, q.err
	}
	spec := q.spec
	spec.Sorts = append([]SortKey(nil), q.spec.Sorts...)
	return spec, nil
}

// Exec runs the query on the bound executor.
func (q *Query) Exec(ctx context.Context) ([]*Person, error) {
	spec, err := q.Build()
	if err != nil {
		return nil, err
	}
	if q.exec == nil {
		return nil, fmt.Errorf("%w: query is not bound to a store", ErrInvalidQuery)
	}
	return q.exec.Find(ctx, spec)
}
