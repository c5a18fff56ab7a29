// Package store persists drift records in SQLite or PostgreSQL.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/model"
)

// Store is a drift.Store with a schema lifecycle.
type Store interface {
	drift.Store
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver: "sqlite", "postgres" or "memory".
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, poolCfg)
	case "memory":
		return &memoryStore{drift.NewMemoryStore()}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

type memoryStore struct {
	*drift.MemoryStore
}

func (memoryStore) Migrate(context.Context) error { return nil }
func (memoryStore) Close() error                  { return nil }

// recordColumns is the column order shared by every query.
const recordColumns = `id, source_id, signature_hash, components, first_seen, last_seen, is_current`

func marshalComponents(c model.SignatureComponents) ([]byte, error) {
	b, err := json.Marshal(c)
	return b, eris.Wrap(err, "store: marshal components")
}

func unmarshalComponents(b []byte, c *model.SignatureComponents) error {
	return eris.Wrap(json.Unmarshal(b, c), "store: unmarshal components")
}
