package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/store/mongodb"
	"github.com/JonMunkholm/bomimport/internal/store/postgres"
)

// Backend is a persistence backend as the mains use it.
type Backend interface {
	core.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	SetValuationRate(ctx context.Context, code string, rate float64) error
}

// Open connects the backend named by cfg.Store.Backend and applies its
// schema when cfg.Database.AutoMigrate is set. closeFn releases it.
func Open(ctx context.Context, cfg *config.Config) (b Backend, closeFn func(), err error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "", "postgres":
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		b, closeFn = postgres.New(pool), pool.Close

	case "mongo":
		s, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		b, closeFn = s, func() { _ = s.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Database.AutoMigrate {
		if err := b.Migrate(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return b, closeFn, nil
}
