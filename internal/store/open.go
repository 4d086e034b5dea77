package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/urbanhealthlab/icemapper/internal/config"
)

// Open creates and migrates a Store for the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var s Store
	switch cfg.Driver {
	case "sqlite", "":
		sq, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		s = sq
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = pg
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
