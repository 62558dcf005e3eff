package person

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Matches reports whether p satisfies every set field of f. FavoriteFood
// matches when the list contains the value, as an array equality query does.
func (f Filter) Matches(p *Person) bool {
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	if f.FavoriteFood != nil && !lo.Contains(p.FavoriteFoods, *f.FavoriteFood) {
		return false
	}
	if f.MinAge != nil && (p.Age == nil || *p.Age < *f.MinAge) {
		return false
	}
	if f.MaxAge != nil && (p.Age == nil || *p.Age > *f.MaxAge) {
		return false
	}
	return true
}

// Apply hides fields according to the projection and returns a copy.
func (pr Projection) Apply(p *Person) *Person {
	out := p.Clone()
	if pr.IsZero() {
		return out
	}
	keep := func(field string) bool {
		if lo.Contains(pr.Exclude, field) {
			return false
		}
		if len(pr.Include) == 0 || field == FieldID {
			return true
		}
		return lo.Contains(pr.Include, field)
	}
	if !keep(FieldID) {
		out.ID = primitive.NilObjectID
	}
	if !keep(FieldName) {
		out.Name = ""
	}
	if !keep(FieldAge) {
		out.Age = nil
	}
	if !keep(FieldFavoriteFoods) {
		out.FavoriteFoods = nil
	}
	return out
}

// compare orders a and b on one field. A missing age sorts before any number.
func compare(a, b *Person, field string) int {
	switch field {
	case FieldName:
		return strings.Compare(a.Name, b.Name)
	case FieldAge:
		switch {
		case a.Age == nil && b.Age == nil:
			return 0
		case a.Age == nil:
			return -1
		case b.Age == nil:
			return 1
		case *a.Age < *b.Age:
			return -1
		case *a.Age > *b.Age:
			return 1
		}
		return 0
	case FieldID:
		return strings.Compare(a.ID.Hex(), b.ID.Hex())
	}
	return 0
}

// Apply evaluates the spec over people held in memory, in their natural
// order. The input slice is not modified.
func (s QuerySpec) Apply(people []*Person) []*Person {
	matched := lo.Filter(people, func(p *Person, _ int) bool { return s.Filter.Matches(p) })
	if len(s.Sorts) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, k := range s.Sorts {
				if c := compare(matched[i], matched[j], k.Field); c != 0 {
					return c*int(k.Order) < 0
				}
			}
			return false
		})
	}
	if s.Skip > 0 {
		if s.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[s.Skip:]
		}
	}
	if s.Limit > 0 && int64(len(matched)) > s.Limit {
		matched = matched[:s.Limit]
	}
	out := make([]*Person, 0, len(matched))
	for _, p := range matched {
		out = append(out, s.Projection.Apply(p))
	}
	return out
}
