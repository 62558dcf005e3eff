package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/internal/person/repository"
	"github.com/peoplebook/peoplebook/pkg/logger"
	"github.com/peoplebook/peoplebook/pkg/metrics"
)

const (
	// AddedFood is appended by FindEditThenSave.
	AddedFood = "hamburger"
	// UpdatedAge is set by FindAndUpdate.
	UpdatedAge = 20
	// DefaultRemoveName is the name RemoveManyPeople deletes when none is given.
	DefaultRemoveName = "Mary"
	// ChainFood, ChainSort, ChainLimit and ChainSelect describe QueryChain.
	ChainFood   = "burrito"
	ChainSort   = "name"
	ChainLimit  = 2
	ChainSelect = "-age"
)

var (
	ErrNotFound = repository.ErrNotFound
)

// Service runs the person operations on top of a repository. Store errors
// are returned unchanged; the service only adds validation, id parsing,
// logging and metrics.
type Service struct {
	repo      repository.Repository
	snapshots SnapshotStore
	now       func() time.Time
}

type Option func(*Service)

// WithSnapshots enables Export and Import.
func WithSnapshots(s SnapshotStore) Option {
	return func(svc *Service) { svc.snapshots = s }
}

func NewService(repo repository.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts ...Option) *Service {
	return NewService(repository.NewMemoryRepo(), opts...)
}

func (s *Service) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StoreOperations.WithLabelValues(op, outcome).Inc()
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Debugw("store operation failed", "op", op, "err", err)
		return
	}
	logger.Debugw("store operation", "op", op, "took", time.Since(start))
}

// CreateAndSavePerson saves the sample person and returns the stored record.
func (s *Service) CreateAndSavePerson(ctx context.Context) (*person.Person, error) {
	return s.Save(ctx, person.SamplePerson())
}

// Save validates p, then inserts it (zero id) or replaces the stored copy.
func (s *Service) Save(ctx context.Context, p *person.Person) (out *person.Person, err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Save(ctx, p)
}

// CreateManyPeople validates every record before inserting them in one call.
func (s *Service) CreateManyPeople(ctx context.Context, people []*person.Person) (out []*person.Person, err error) {
	defer func(start time.Time) { s.observe("create_many", start, err) }(time.Now())
	for i, p := range people {
		if p == nil {
			return nil, fmt.Errorf("%w: entry %d is empty", person.ErrValidation, i)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return s.repo.InsertMany(ctx, people)
}

func (s *Service) FindPeopleByName(ctx context.Context, name string) ([]*person.Person, error) {
	return s.Find(person.ByName(name)).Exec(ctx)
}

// FindOneByFood returns one person whose favoriteFoods contains food, or nil.
func (s *Service) FindOneByFood(ctx context.Context, food string) (p *person.Person, err error) {
	defer func(start time.Time) { s.observe("find_one", start, err) }(time.Now())
	return s.repo.FindOne(ctx, person.ByFood(food))
}

// FindPersonByID returns the person or nil. Malformed ids yield person.ErrInvalidID.
func (s *Service) FindPersonByID(ctx context.Context, id string) (p *person.Person, err error) {
	defer func(start time.Time) { s.observe("find_by_id", start, err) }(time.Now())
	oid, err := person.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, oid)
}

// FindEditThenSave fetches the person, appends AddedFood and saves the whole
// document back.
func (s *Service) FindEditThenSave(ctx context.Context, id string) (*person.Person, error) {
	p, err := s.FindPersonByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	p.FavoriteFoods = append(p.FavoriteFoods, AddedFood)
	return s.Save(ctx, p)
}

// FindAndUpdate sets age to UpdatedAge on the first person named name and
// returns the document as it is after the update, or nil without a match.
func (s *Service) FindAndUpdate(ctx context.Context, name string) (p *person.Person, err error) {
	defer func(start time.Time) { s.observe("find_and_update", start, err) }(time.Now())
	return s.repo.SetAgeByName(ctx, name, UpdatedAge)
}

// RemoveByID deletes the person and returns the removed document, or nil.
func (s *Service) RemoveByID(ctx context.Context, id string) (p *person.Person, err error) {
	defer func(start time.Time) { s.observe("remove_by_id", start, err) }(time.Now())
	oid, err := person.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.DeleteByID(ctx, oid)
}

// RemoveManyPeople deletes everyone with the given name (DefaultRemoveName
// when empty) and reports how many documents went away.
func (s *Service) RemoveManyPeople(ctx context.Context, name string) (res *person.DeleteResult, err error) {
	defer func(start time.Time) { s.observe("remove_many", start, err) }(time.Now())
	if name == "" {
		name = DefaultRemoveName
	}
	return s.repo.DeleteMany(ctx, person.ByName(name))
}

// QueryChain finds up to two burrito lovers sorted by name, without their age.
func (s *Service) QueryChain(ctx context.Context) ([]*person.Person, error) {
	return s.Find(person.ByFood(ChainFood)).
		Sort(ChainSort).
		Limit(ChainLimit).
		Select(ChainSelect).
		Exec(ctx)
}

// Find starts a chained query bound to the service's store.
func (s *Service) Find(f person.Filter) *person.Query {
	return person.Find(f).On(observedExecutor{s})
}

func (s *Service) Count(ctx context.Context, f person.Filter) (n int64, err error) {
	defer func(start time.Time) { s.observe("count", start, err) }(time.Now())
	return s.repo.Count(ctx, f)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

type observedExecutor struct{ s *Service }

func (o observedExecutor) Find(ctx context.Context, spec person.QuerySpec) (out []*person.Person, err error) {
	defer func(start time.Time) { o.s.observe("find", start, err) }(time.Now())
	return o.s.repo.Find(ctx, spec)
}

// IsNotFound reports whether err means the requested person does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
