package mongodb

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/homeroom/core"
)

// Store maps each collection to a Mongo collection of the same name. The document ID is kept in _id.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger core.Logger
}

var _ core.DocStore = (*Store)(nil)

func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return &Store{client: client, db: client.Database(conf.Database.Name), logger: logger}, nil
}

func fromBSON(m bson.M) core.Document {
	id := fmt.Sprint(m["_id"])
	delete(m, "_id")
	doc, _ := core.NormalizeValue(map[string]interface{}(m)).(map[string]interface{})
	if doc == nil {
		doc = make(core.Document)
	}
	doc["id"] = id
	return doc
}

func toBSON(id string, doc core.Document) bson.M {
	m, _ := core.NormalizeValue(map[string]interface{}(doc)).(map[string]interface{})
	out := bson.M{}
	for k, v := range m {
		if k != "id" {
			out[k] = v
		}
	}
	out["_id"] = id
	return out
}

// filterOf translates the filters on "id" to _id.
func filterOf(filters []core.Filter) bson.M {
	f := bson.M{}
	for _, flt := range filters {
		field := flt.Field
		if field == "id" {
			field = "_id"
		}
		f[field] = flt.Value
	}
	return f
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	var m bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, core.ErrDocNotFound
		}
		return nil, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	return fromBSON(m), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc core.Document) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, toBSON(id, doc), opts)
	return errors.Wrapf(err, "setting %s/%s", collection, id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrapf(err, "deleting %s/%s", collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...core.Filter) ([]core.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, filterOf(filters), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", collection)
	}

	var results []bson.M
	if err = cursor.All(ctx, &results); err != nil {
		return nil, errors.Wrapf(err, "reading %s", collection)
	}

	docs := make([]core.Document, 0, len(results))
	for _, m := range results {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// Subscribe opens a change stream on the collection and re-reads it on every change.
// Change streams need a replica set.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan []core.Document, error) {
	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, errors.Wrapf(err, "watching %s", collection)
	}

	ch := make(chan []core.Document, 1)
	push := func() {
		docs, err := s.Query(ctx, collection)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error(fmt.Sprintf("reading %s after change", collection), err)
			}
			return
		}
		core.SendLatest(ch, docs)
	}

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close(context.Background()) }()

		push()
		for stream.Next(ctx) {
			push()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.logger.Error(fmt.Sprintf("watching %s", collection), err)
		}
	}()
	return ch, nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
