package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/peoplebook/peoplebook/internal/person"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("person not found")
)

// DuplicateKeyError is returned by the memory store when an insert reuses an id.
type DuplicateKeyError struct {
	ID primitive.ObjectID
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: _id %s already exists", e.ID.Hex())
}

// IsDuplicateKey reports whether err is a unique-key violation from any store.
func IsDuplicateKey(err error) bool {
	var dk *DuplicateKeyError
	return errors.As(err, &dk) || mongo.IsDuplicateKeyError(err)
}

// Repository is the persistence contract shared by the Mongo, memory and
// cached stores. Single-document lookups return (nil, nil) when nothing
// matches; only Save on an unknown id reports ErrNotFound.
type Repository interface {
	person.Executor

	// Save inserts p when its ID is zero and replaces the stored document otherwise.
	Save(ctx context.Context, p *person.Person) (*person.Person, error)
	InsertMany(ctx context.Context, people []*person.Person) ([]*person.Person, error)
	FindOne(ctx context.Context, f person.Filter) (*person.Person, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error)
	// SetAgeByName updates the first match and returns the document after the update.
	SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error)
	// DeleteByID removes the document and returns it as it was stored.
	DeleteByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error)
	DeleteMany(ctx context.Context, f person.Filter) (*person.DeleteResult, error)
	Count(ctx context.Context, f person.Filter) (int64, error)
	Ping(ctx context.Context) error
}
