// Package database opens the document store selected by the configuration.
package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	firestoredb "github.com/trezcool/homeroom/storage/database/firestore"
	inmemdb "github.com/trezcool/homeroom/storage/database/inmem"
	mongodb "github.com/trezcool/homeroom/storage/database/mongo"
	"github.com/trezcool/homeroom/storage/database/postgres"
)

const (
	EngineMemory    = "memory"
	EngineFirestore = "firestore"
	EngineMongo     = "mongo"
	EnginePostgres  = "postgres"
)

var ErrUnknownEngine = errors.New("unknown database engine")

// Open connects to the configured engine. An empty engine falls back to the in-memory store.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (core.DocStore, error) {
	switch conf.Database.Engine {
	case "", EngineMemory:
		return inmemdb.New(), nil
	case EngineFirestore:
		return firestoredb.Open(ctx, conf, logger)
	case EngineMongo:
		return mongodb.Open(ctx, conf, logger)
	case EnginePostgres:
		return postgres.Open(ctx, conf, logger)
	}
	return nil, errors.Wrap(ErrUnknownEngine, conf.Database.Engine)
}
