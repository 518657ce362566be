package inmemdb

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/trezcool/homeroom/core"
)

type (
	table map[string]core.Document // {id: doc}

	subscriber struct {
		collection string
		ch         chan []core.Document
	}
)

// Store keeps the documents in process memory. Documents are stored and returned as copies.
type Store struct {
	mutex  sync.RWMutex
	tables map[string]table
	subs   map[*subscriber]struct{}
}

var _ core.DocStore = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: make(map[string]table),
		subs:   make(map[*subscriber]struct{}),
	}
}

func clone(doc core.Document) core.Document {
	m, _ := core.NormalizeValue(map[string]interface{}(doc)).(map[string]interface{})
	return m
}

func (s *Store) Get(_ context.Context, collection, id string) (core.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if doc, ok := s.tables[collection][id]; ok {
		return clone(doc), nil
	}
	return nil, core.ErrDocNotFound
}

func (s *Store) Set(_ context.Context, collection, id string, doc core.Document) error {
	doc = clone(doc)
	if doc == nil {
		doc = make(core.Document)
	}
	doc["id"] = id

	s.mutex.Lock()
	defer s.mutex.Unlock()
	t, ok := s.tables[collection]
	if !ok {
		t = make(table)
		s.tables[collection] = t
	}
	t[id] = doc
	s.notify(collection)
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.tables[collection][id]; ok {
		delete(s.tables[collection], id)
		s.notify(collection)
	}
	return nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...core.Filter) ([]core.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.query(collection, filters...), nil
}

func (s *Store) query(collection string, filters ...core.Filter) []core.Document {
	want := make([]interface{}, len(filters))
	for i, f := range filters {
		want[i] = core.NormalizeValue(f.Value)
	}

	docs := make([]core.Document, 0, len(s.tables[collection]))
	for _, doc := range s.tables[collection] {
		matches := true
		for i, f := range filters {
			if !reflect.DeepEqual(doc[f.Field], want[i]) {
				matches = false
				break
			}
		}
		if matches {
			docs = append(docs, clone(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID() < docs[j].ID() })
	return docs
}

// Subscribe pushes the current documents right away, then after every change.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan []core.Document, error) {
	sub := &subscriber{collection: collection, ch: make(chan []core.Document, 1)}

	s.mutex.Lock()
	s.subs[sub] = struct{}{}
	core.SendLatest(sub.ch, s.query(collection))
	s.mutex.Unlock()

	go func() {
		<-ctx.Done()
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// notify must be called with the write lock held.
func (s *Store) notify(collection string) {
	var docs []core.Document
	for sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		if docs == nil {
			docs = s.query(collection)
		}
		core.SendLatest(sub.ch, docs)
	}
}

// Close ends every subscription.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
	return nil
}
