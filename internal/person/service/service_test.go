package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/internal/person/repository"
	"github.com/peoplebook/peoplebook/internal/storage"
	"github.com/peoplebook/peoplebook/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateAndSavePerson(t *testing.T) {
	svc := NewMemoryService()
	p, err := svc.CreateAndSavePerson(context.Background())
	require.NoError(t, err)
	assert.False(t, p.ID.IsZero())
	assert.Equal(t, "Vasyl", p.Name)
	assert.Equal(t, 28, *p.Age)
	assert.Equal(t, []string{"Egg", "Piza", "Coffee"}, p.FavoriteFoods)
}

func TestCreateManyAndFind(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	saved, err := svc.CreateManyPeople(ctx, []*person.Person{
		{Name: "Frankie", Age: person.IntPtr(74), FavoriteFoods: []string{"Del Taco"}},
		{Name: "Sol", Age: person.IntPtr(76), FavoriteFoods: []string{"roast chicken"}},
		{Name: "Robert", Age: person.IntPtr(78), FavoriteFoods: []string{"wine"}},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	byName, err := svc.FindPeopleByName(ctx, "Sol")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, saved[1].ID, byName[0].ID)

	none, err := svc.FindPeopleByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	one, err := svc.FindOneByFood(ctx, "wine")
	require.NoError(t, err)
	assert.Equal(t, "Robert", one.Name)

	byID, err := svc.FindPersonByID(ctx, saved[0].ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Frankie", byID.Name)

	missing, err := svc.FindPersonByID(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.FindPersonByID(ctx, "xyz")
	require.ErrorIs(t, err, person.ErrInvalidID)
}

func TestCreateManyValidatesFirst(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	_, err := svc.CreateManyPeople(ctx, []*person.Person{{Name: "ok"}, {Age: person.IntPtr(3)}})
	require.ErrorIs(t, err, person.ErrValidation)
	assert.Contains(t, err.Error(), "entry 1")

	n, err := svc.Count(ctx, person.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is written when one entry is invalid")

	_, err = svc.CreateManyPeople(ctx, []*person.Person{nil})
	require.ErrorIs(t, err, person.ErrValidation)
}

func TestFindEditThenSave(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	p, err := svc.CreateAndSavePerson(ctx)
	require.NoError(t, err)

	updated, err := svc.FindEditThenSave(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"Egg", "Piza", "Coffee", "hamburger"}, updated.FavoriteFoods)

	stored, err := svc.FindPersonByID(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, updated.FavoriteFoods, stored.FavoriteFoods)

	_, err = svc.FindEditThenSave(ctx, primitive.NewObjectID().Hex())
	require.True(t, IsNotFound(err))
}

func TestFindAndUpdate(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	_, err := svc.Save(ctx, &person.Person{Name: "Dorian Gray", Age: person.IntPtr(100)})
	require.NoError(t, err)

	p, err := svc.FindAndUpdate(ctx, "Dorian Gray")
	require.NoError(t, err)
	assert.Equal(t, 20, *p.Age, "the updated document is returned")

	none, err := svc.FindAndUpdate(ctx, "Basil")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRemoveByIDAndMany(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	saved, err := svc.CreateManyPeople(ctx, []*person.Person{{Name: "Mary"}, {Name: "Mary"}, {Name: "Jane"}})
	require.NoError(t, err)

	removed, err := svc.RemoveByID(ctx, saved[2].ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Jane", removed.Name)

	again, err := svc.RemoveByID(ctx, saved[2].ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, again)

	_, err = svc.RemoveByID(ctx, "nope")
	require.ErrorIs(t, err, person.ErrInvalidID)

	res, err := svc.RemoveManyPeople(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.DeletedCount)

	n, err := svc.Count(ctx, person.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryChain(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	_, err := svc.CreateManyPeople(ctx, []*person.Person{
		{Name: "Pablo", Age: person.IntPtr(26), FavoriteFoods: []string{"burrito", "hot-dog"}},
		{Name: "Bob", Age: person.IntPtr(23), FavoriteFoods: []string{"pizza", "nachos"}},
		{Name: "Ashley", Age: person.IntPtr(32), FavoriteFoods: []string{"steak", "burrito"}},
		{Name: "Mario", Age: person.IntPtr(51), FavoriteFoods: []string{"burrito", "prosciutto"}},
	})
	require.NoError(t, err)

	got, err := svc.QueryChain(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ashley", got[0].Name)
	assert.Equal(t, "Mario", got[1].Name)
	for _, p := range got {
		assert.Nil(t, p.Age)
		assert.Contains(t, p.FavoriteFoods, "burrito")
	}
}

func TestEmptyArgumentsMatchNobody(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	_, err := svc.CreateManyPeople(ctx, []*person.Person{
		{Name: "Ann", Age: person.IntPtr(50), FavoriteFoods: []string{"soup"}},
		{Name: "Bob", Age: person.IntPtr(60)},
	})
	require.NoError(t, err)

	byName, err := svc.FindPeopleByName(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, byName)

	byFood, err := svc.FindOneByFood(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, byFood)

	updated, err := svc.FindAndUpdate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, updated)

	ann, err := svc.FindPeopleByName(ctx, "Ann")
	require.NoError(t, err)
	require.Len(t, ann, 1)
	assert.Equal(t, 50, *ann[0].Age, "no document was touched")
}

func TestSaveValidation(t *testing.T) {
	svc := NewMemoryService()
	_, err := svc.Save(context.Background(), &person.Person{})
	require.ErrorIs(t, err, person.ErrValidation)
}

// failingRepo returns the same store error from every call.
type failingRepo struct {
	repository.Repository
	err error
}

func (f failingRepo) FindOne(context.Context, person.Filter) (*person.Person, error) { return nil, f.err }
func (f failingRepo) Find(context.Context, person.QuerySpec) ([]*person.Person, error) {
	return nil, f.err
}
func (f failingRepo) DeleteMany(context.Context, person.Filter) (*person.DeleteResult, error) {
	return nil, f.err
}

func TestStoreErrorsPassThrough(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	svc := NewService(failingRepo{err: storeErr})
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("find", "error"))

	_, err := svc.FindOneByFood(ctx, "x")
	require.Same(t, storeErr, err)
	_, err = svc.QueryChain(ctx)
	require.Same(t, storeErr, err)
	_, err = svc.RemoveManyPeople(ctx, "Mary")
	require.Same(t, storeErr, err)

	after := testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("find", "error"))
	assert.Equal(t, before+1, after)
}

// memSnapshots keeps uploaded objects in memory.
type memSnapshots struct {
	objects map[string][]byte
	failPut error
}

func (m *memSnapshots) UploadFile(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.failPut != nil {
		return m.failPut
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = b
	return nil
}

func (m *memSnapshots) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s does not exist", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memSnapshots) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/bucket/" + key, nil
}

func (m *memSnapshots) LatestKey(_ context.Context, prefix string) (string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w %q", storage.ErrNoObjects, prefix)
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

func TestExportImport(t *testing.T) {
	snaps := &memSnapshots{}
	src := NewMemoryService(WithSnapshots(snaps))
	ctx := context.Background()
	_, err := src.CreateManyPeople(ctx, []*person.Person{{Name: "a", FavoriteFoods: []string{"x"}}, {Name: "b"}})
	require.NoError(t, err)

	info, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)
	assert.True(t, strings.HasPrefix(info.Key, SnapshotPrefix))
	assert.Contains(t, info.URL, info.Key)

	dst := NewMemoryService(WithSnapshots(snaps))
	imported, err := dst.Import(ctx, "")
	require.NoError(t, err)
	require.Len(t, imported, 2)

	n, err := dst.Count(ctx, person.ByFood("x"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = src.Import(ctx, info.Key)
	require.Error(t, err)
	assert.True(t, repository.IsDuplicateKey(err))
}

func TestSnapshotsDisabled(t *testing.T) {
	svc := NewMemoryService()
	_, err := svc.Export(context.Background())
	require.ErrorIs(t, err, ErrSnapshotsDisabled)
	_, err = svc.Import(context.Background(), "k")
	require.ErrorIs(t, err, ErrSnapshotsDisabled)
}

func TestImportWithoutExports(t *testing.T) {
	svc := NewMemoryService(WithSnapshots(&memSnapshots{}))
	_, err := svc.Import(context.Background(), "")
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestExportUploadFailure(t *testing.T) {
	putErr := errors.New("bucket is read-only")
	svc := NewMemoryService(WithSnapshots(&memSnapshots{failPut: putErr}))
	_, err := svc.Export(context.Background())
	require.ErrorIs(t, err, putErr)
}
