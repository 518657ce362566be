package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// collections
const (
	CollStudents   = "students"
	CollSections   = "sections"
	CollSubjects   = "subjects"
	CollUsers      = "users"
	CollAttendance = "attendance"
)

var ErrDocNotFound = errors.New("document not found")

type (
	// Document is a schemaless record as stored in a collection. The "id" key always holds the document ID.
	Document map[string]interface{}

	// Filter matches documents whose Field equals Value.
	Filter struct {
		Field string
		Value interface{}
	}

	// DocStore is the narrow CRUD-and-subscribe contract every storage backend implements.
	DocStore interface {
		Get(ctx context.Context, collection, id string) (Document, error)
		// Set creates or replaces the whole document.
		Set(ctx context.Context, collection, id string, doc Document) error
		Delete(ctx context.Context, collection, id string) error
		// Query applies AND on all filters.
		Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
		// Subscribe pushes full collection snapshots until ctx is done, then closes the channel.
		Subscribe(ctx context.Context, collection string) (<-chan []Document, error)
		Close() error
	}
)

func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// String returns the value of the first non-empty key, stringified.
func (d Document) String(keys ...string) string {
	for _, k := range keys {
		switch v := d[k].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%v", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// ToDocument converts any JSON-serializable value into a Document.
func ToDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling document")
	}
	var doc Document
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling document")
	}
	return doc, nil
}

// FromDocument decodes doc into dst (pointer).
func FromDocument(doc Document, dst interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshalling document")
	}
	return errors.Wrap(json.Unmarshal(data, dst), "decoding document")
}

// NormalizeValue gives v the shape it would have after a store round trip (numbers as float64, etc).
func NormalizeValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err = json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// SortDocuments sorts docs in place by the given orderings; ties fall back to the document ID.
func SortDocuments(docs []Document, ordering []DBOrdering) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareValues(docs[i][ord.Field], docs[j][ord.Field])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return docs[i].ID() < docs[j].ID()
	})
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, _ := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// SendLatest pushes docs on a subscription channel of capacity 1, replacing a snapshot the
// subscriber has not read yet. ch must have a single sender.
func SendLatest(ch chan []Document, docs []Document) {
	select {
	case ch <- docs:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- docs:
	default:
	}
}
