package repository

import (
	"context"
	"errors"

	"github.com/peoplebook/peoplebook/internal/person"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores people in a MongoDB collection. Every method is a single
// driver call; driver errors are returned unchanged.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the lookup indexes used by name and food queries.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: person.FieldName, Value: 1}}},
		{Keys: bson.D{{Key: person.FieldFavoriteFoods, Value: 1}}},
	}
	_, err := m.col.Indexes().CreateMany(ctx, models)
	return err
}

func filterDoc(f person.Filter) bson.D {
	doc := bson.D{}
	if f.Name != nil {
		doc = append(doc, bson.E{Key: person.FieldName, Value: *f.Name})
	}
	if f.FavoriteFood != nil {
		doc = append(doc, bson.E{Key: person.FieldFavoriteFoods, Value: *f.FavoriteFood})
	}
	if f.MinAge != nil || f.MaxAge != nil {
		rng := bson.D{}
		if f.MinAge != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: *f.MinAge})
		}
		if f.MaxAge != nil {
			rng = append(rng, bson.E{Key: "$lte", Value: *f.MaxAge})
		}
		doc = append(doc, bson.E{Key: person.FieldAge, Value: rng})
	}
	return doc
}

func projectionDoc(p person.Projection) bson.D {
	doc := bson.D{}
	for _, f := range p.Include {
		doc = append(doc, bson.E{Key: f, Value: 1})
	}
	for _, f := range p.Exclude {
		doc = append(doc, bson.E{Key: f, Value: 0})
	}
	return doc
}

func findOptions(spec person.QuerySpec) *options.FindOptions {
	opts := options.Find()
	if len(spec.Sorts) > 0 {
		sort := bson.D{}
		for _, k := range spec.Sorts {
			sort = append(sort, bson.E{Key: k.Field, Value: int(k.Order)})
		}
		opts.SetSort(sort)
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	if spec.Skip > 0 {
		opts.SetSkip(spec.Skip)
	}
	if !spec.Projection.IsZero() {
		opts.SetProjection(projectionDoc(spec.Projection))
	}
	return opts
}

func (m *MongoRepo) Save(ctx context.Context, p *person.Person) (*person.Person, error) {
	p.Normalize()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
		if _, err := m.col.InsertOne(ctx, p); err != nil {
			p.ID = primitive.NilObjectID
			return nil, err
		}
		return p.Clone(), nil
	}
	res, err := m.col.ReplaceOne(ctx, bson.D{{Key: person.FieldID, Value: p.ID}}, p)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MongoRepo) InsertMany(ctx context.Context, people []*person.Person) ([]*person.Person, error) {
	if len(people) == 0 {
		return []*person.Person{}, nil
	}
	docs := make([]interface{}, 0, len(people))
	for _, p := range people {
		p.Normalize()
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		docs = append(docs, p)
	}
	if _, err := m.col.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	out := make([]*person.Person, 0, len(people))
	for _, p := range people {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *MongoRepo) Find(ctx context.Context, spec person.QuerySpec) ([]*person.Person, error) {
	cur, err := m.col.Find(ctx, filterDoc(spec.Filter), findOptions(spec))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*person.Person{}
	for cur.Next(ctx) {
		var p person.Person
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}

// decodeOne turns a single result into a person; no match yields (nil, nil).
func decodeOne(res *mongo.SingleResult) (*person.Person, error) {
	var p person.Person
	if err := res.Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoRepo) FindOne(ctx context.Context, f person.Filter) (*person.Person, error) {
	return decodeOne(m.col.FindOne(ctx, filterDoc(f)))
}

func (m *MongoRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	return decodeOne(m.col.FindOne(ctx, bson.D{{Key: person.FieldID, Value: id}}))
}

func (m *MongoRepo) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: person.FieldAge, Value: age}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(m.col.FindOneAndUpdate(ctx, bson.D{{Key: person.FieldName, Value: name}}, update, opts))
}

func (m *MongoRepo) DeleteByID(ctx context.Context, id primitive.ObjectID) (*person.Person, error) {
	return decodeOne(m.col.FindOneAndDelete(ctx, bson.D{{Key: person.FieldID, Value: id}}))
}

func (m *MongoRepo) DeleteMany(ctx context.Context, f person.Filter) (*person.DeleteResult, error) {
	res, err := m.col.DeleteMany(ctx, filterDoc(f))
	if err != nil {
		return nil, err
	}
	return &person.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (m *MongoRepo) Count(ctx context.Context, f person.Filter) (int64, error) {
	return m.col.CountDocuments(ctx, filterDoc(f))
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}
