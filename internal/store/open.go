package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/researchmate/internal/config"
)

// Open builds the Store selected by cfg.Driver. The returned close func releases
// its resources and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func(), error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemoryStore(), func() {}, nil

	case config.StorePostgres:
		if err := RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return nil, nil, err
		}
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(pool), pool.Close, nil

	case config.StoreSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("closing sqlite store", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
