package repository

import (
	"context"
	"testing"

	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryRepoCRUD(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	saved, err := r.Save(ctx, person.SamplePerson())
	require.NoError(t, err)
	require.False(t, saved.ID.IsZero())

	got, err := r.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, "Vasyl", got.Name)

	got.FavoriteFoods = append(got.FavoriteFoods, "hamburger")
	_, err = r.Save(ctx, got)
	require.NoError(t, err)
	again, err := r.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Egg", "Piza", "Coffee", "hamburger"}, again.FavoriteFoods)

	removed, err := r.DeleteByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, saved.ID, removed.ID)
	missing, err := r.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryRepoSaveUnknownID(t *testing.T) {
	r := NewMemoryRepo()
	_, err := r.Save(context.Background(), &person.Person{ID: primitive.NewObjectID(), Name: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepoInsertManyAndQueries(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	saved, err := r.InsertMany(ctx, []*person.Person{
		{Name: "Mary", Age: person.IntPtr(30)},
		{Name: "Mary", FavoriteFoods: []string{"burrito"}},
		{Name: "John", FavoriteFoods: []string{"burrito", "soup"}},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.NotNil(t, saved[0].FavoriteFoods, "favoriteFoods defaults to an empty list")

	marys, err := r.Find(ctx, person.QuerySpec{Filter: person.ByName("Mary")})
	require.NoError(t, err)
	assert.Len(t, marys, 2)

	one, err := r.FindOne(ctx, person.ByFood("burrito"))
	require.NoError(t, err)
	assert.Equal(t, saved[1].ID, one.ID, "first match in natural order")

	none, err := r.FindOne(ctx, person.ByFood("sushi"))
	require.NoError(t, err)
	assert.Nil(t, none)

	updated, err := r.SetAgeByName(ctx, "John", 20)
	require.NoError(t, err)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 20, *updated.Age)

	noMatch, err := r.SetAgeByName(ctx, "Nobody", 20)
	require.NoError(t, err)
	assert.Nil(t, noMatch)

	n, err := r.Count(ctx, person.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	res, err := r.DeleteMany(ctx, person.ByName("Mary"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.DeletedCount)

	rest, err := r.Find(ctx, person.QuerySpec{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "John", rest[0].Name)
}

func TestMemoryRepoInsertManyDuplicate(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p, err := r.Save(ctx, &person.Person{Name: "a"})
	require.NoError(t, err)

	_, err = r.InsertMany(ctx, []*person.Person{{ID: p.ID, Name: "b"}})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p, err := r.Save(ctx, &person.Person{Name: "a", FavoriteFoods: []string{"x"}})
	require.NoError(t, err)
	p.FavoriteFoods[0] = "mutated"

	got, err := r.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.FavoriteFoods[0])
}
