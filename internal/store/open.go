// Package store selects the application store backend from configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/config"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/store/postgres"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/store/sqlite"
)

// Open connects to the store named by cfg.URL and migrates it when
// cfg.Migrate is set. The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ingest.Store, error) {
	driver, dsn, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	var s ingest.Store
	switch driver {
	case config.DriverPostgres:
		s, err = postgres.Open(ctx, dsn, postgres.PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case config.DriverSQLite:
		s, err = sqlite.Open(dsn)
	default:
		err = fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	slog.Info("connected to store", "driver", driver)

	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate %s store: %w", driver, err)
		}
	}
	return s, nil
}
