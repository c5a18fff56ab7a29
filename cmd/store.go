package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/store"
)

// openStore opens the configured drift store and applies its schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open drift store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate drift store")
	}
	return st, nil
}
