package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/services/firebase"
)

// Store maps each collection to a Firestore collection of the same name.
type Store struct {
	client *firestore.Client
	logger core.Logger
}

var _ core.DocStore = (*Store)(nil)

func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Store, error) {
	app, err := firebase.NewApp(ctx, conf)
	if err != nil {
		return nil, err
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}
	return &Store{client: client, logger: logger}, nil
}

// fromSnapshot normalizes the Firestore values (timestamps, int64) to their JSON shape.
func fromSnapshot(snap *firestore.DocumentSnapshot) core.Document {
	doc, _ := core.NormalizeValue(snap.Data()).(map[string]interface{})
	if doc == nil {
		doc = make(core.Document)
	}
	doc["id"] = snap.Ref.ID
	return doc
}

func fromSnapshots(snaps []*firestore.DocumentSnapshot) []core.Document {
	docs := make([]core.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, fromSnapshot(snap))
	}
	return docs
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, core.ErrDocNotFound
		}
		return nil, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	return fromSnapshot(snap), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc core.Document) error {
	data, _ := core.NormalizeValue(map[string]interface{}(doc)).(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["id"] = id
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return errors.Wrapf(err, "setting %s/%s", collection, id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return errors.Wrapf(err, "deleting %s/%s", collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...core.Filter) ([]core.Document, error) {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []core.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "querying %s", collection)
		}
		docs = append(docs, fromSnapshot(snap))
	}
	core.SortDocuments(docs, nil)
	return docs, nil
}

// Subscribe relays the Firestore realtime query snapshots of the whole collection.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan []core.Document, error) {
	iter := s.client.Collection(collection).Snapshots(ctx)
	ch := make(chan []core.Document, 1)

	go func() {
		defer close(ch)
		defer iter.Stop()

		for {
			qs, err := iter.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					s.logger.Error(fmt.Sprintf("watching %s", collection), err)
				}
				return
			}
			snaps, err := qs.Documents.GetAll()
			if err != nil {
				s.logger.Error(fmt.Sprintf("reading %s snapshot", collection), err)
				continue
			}
			docs := fromSnapshots(snaps)
			core.SortDocuments(docs, nil)
			core.SendLatest(ch, docs)
		}
	}()
	return ch, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
