package repository

import (
	"context"
	"sync"

	"github.com/peoplebook/peoplebook/internal/person"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo keeps people in insertion order. It backs unit tests and runs
// the service when no MongoDB URI is configured.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []primitive.ObjectID
	store map[primitive.ObjectID]*person.Person
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[primitive.ObjectID]*person.Person)}
}

func (m *MemoryRepo) Save(ctx context.Context, p *person.Person) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Normalize()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
		m.insertLocked(p)
		return p.Clone(), nil
	}
	if _, ok := m.store[p.ID]; !ok {
		return nil, ErrNotFound
	}
	m.store[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (m *MemoryRepo) insertLocked(p *person.Person) {
	m.store[p.ID] = p.Clone()
	m.order = append(m.order, p.ID)
}

func (m *MemoryRepo) InsertMany(ctx context.Context, people []*person.Person) ([]*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*person.Person, 0, len(people))
	for _, p := range people {
		p.Normalize()
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		} else if _, ok := m.store[p.ID]; ok {
			return out, &DuplicateKeyError{ID: p.ID}
		}
		m.insertLocked(p)
		out = append(out, p.Clone())
	}
	return out, nil
}

// snapshotLocked returns stored people in natural order without copying.
func (m *MemoryRepo) snapshotLocked() []*person.Person {
	out := make([]*person.Person, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.store[id])
	}
	return out
}

func (m *MemoryRepo) Find(ctx context.Context, spec person.QuerySpec) ([]*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return spec.Apply(m.snapshotLocked()), nil
}

func (m *MemoryRepo) FindOne(ctx context.Context, f person.Filter) (*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.snapshotLocked() {
		if f.Matches(p) {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.store[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *MemoryRepo) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := person.ByName(name)
	for _, p := range m.snapshotLocked() {
		if f.Matches(p) {
			p.Age = person.IntPtr(age)
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepo) DeleteByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	m.removeLocked(func(other primitive.ObjectID) bool { return other == id })
	return p, nil
}

func (m *MemoryRepo) DeleteMany(ctx context.Context, f person.Filter) (*person.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.removeLocked(func(id primitive.ObjectID) bool { return f.Matches(m.store[id]) })
	return &person.DeleteResult{DeletedCount: n}, nil
}

func (m *MemoryRepo) removeLocked(match func(primitive.ObjectID) bool) int64 {
	var n int64
	kept := m.order[:0]
	for _, id := range m.order {
		if match(id) {
			delete(m.store, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return n
}

func (m *MemoryRepo) Count(ctx context.Context, f person.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.store {
		if f.Matches(p) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) Ping(ctx context.Context) error { return nil }
