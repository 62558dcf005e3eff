package person

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrValidation wraps schema violations detected before a write.
	ErrValidation = errors.New("person validation failed")
	// ErrInvalidID is returned when an id is not a 24-char hex ObjectID.
	ErrInvalidID = errors.New("invalid person id")
)

// Person is the only persistent entity of the service. Documents live in the
// "people" collection; Age is optional and FavoriteFoods keeps insertion order.
type Person struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name" validate:"required"`
	Age           *int               `json:"age,omitempty" bson:"age,omitempty"`
	FavoriteFoods []string           `json:"favoriteFoods" bson:"favoriteFoods"`
}

// SamplePerson is the record saved by CreateAndSavePerson.
func SamplePerson() *Person {
	return &Person{Name: "Vasyl", Age: IntPtr(28), FavoriteFoods: []string{"Egg", "Piza", "Coffee"}}
}

// IntPtr returns a pointer to v, for building an Age.
func IntPtr(v int) *int { return &v }

var validate = validator.New()

// Validate checks the record against the collection schema. The returned error
// wraps ErrValidation.
func (p *Person) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %q failed %q", ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Normalize fills defaults applied on every save.
func (p *Person) Normalize() {
	if p.FavoriteFoods == nil {
		p.FavoriteFoods = []string{}
	}
}

// Clone returns a deep copy so stores never share slices with callers.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	c := *p
	if p.Age != nil {
		c.Age = IntPtr(*p.Age)
	}
	if p.FavoriteFoods != nil {
		c.FavoriteFoods = append([]string{}, p.FavoriteFoods...)
	}
	return &c
}

// ParseID converts a hex string to an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// DeleteResult reports the outcome of a bulk removal.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}
