package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
)

// notifyChannel is fed by the documents_changed trigger with the name of the changed collection.
const notifyChannel = "documents_changed"

type docRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Store keeps every collection in the documents table, one jsonb value per document.
type Store struct {
	db     *sqlx.DB
	dsn    string
	logger core.Logger
}

var _ core.DocStore = (*Store)(nil)

// Open connects to the app database and runs the pending migrations.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Store, error) {
	if conf.Debug {
		if err := CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
	}

	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dsn: dsn(conf.Database.Name, false, conf), logger: logger}, nil
}

// DB exposes the connection pool, for the admin CLI.
func (s *Store) DB() *sql.DB { return s.db.DB }

func decode(data []byte) (core.Document, error) {
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrDocNotFound
		}
		return nil, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	return decode(data)
}

func (s *Store) Set(ctx context.Context, collection, id string, doc core.Document) error {
	if doc == nil {
		doc = make(core.Document)
	}
	doc["id"] = id
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	q := `
		INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err = s.db.ExecContext(ctx, q, collection, id, data); err != nil {
		return errors.Wrapf(err, "setting %s/%s", collection, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return errors.Wrapf(err, "deleting %s/%s", collection, id)
}

// Query matches each filter with a jsonb containment (data @> {field: value}).
func (s *Store) Query(ctx context.Context, collection string, filters ...core.Filter) ([]core.Document, error) {
	var (
		where = []string{"collection = $1"}
		args  = []interface{}{collection}
	)
	for _, f := range filters {
		cond, err := json.Marshal(map[string]interface{}{f.Field: f.Value})
		if err != nil {
			return nil, errors.Wrap(err, "encoding filter")
		}
		args = append(args, cond)
		where = append(where, fmt.Sprintf("data @> $%d::jsonb", len(args)))
	}

	var rows []docRow
	q := `SELECT id, data FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", collection)
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decode(row.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s/%s", collection, row.ID)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Subscribe listens to the documents_changed notifications and re-reads the collection on each one.
// A reconnection of the listener also triggers a re-read.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan []core.Document, error) {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn(fmt.Sprintf("documents listener event %d", ev), err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrap(err, "listening to document changes")
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
		defer func() { _ = listener.Close() }()

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnection
				if n == nil || n.Extra == collection {
					push()
				}
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()
	return ch, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
