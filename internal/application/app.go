// Package application wires configuration, stores and the import service
// together for the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/bomimport/internal/attachment"
	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/sheet"
	"github.com/JonMunkholm/bomimport/internal/store"
)

// App is a fully wired importer.
type App struct {
	Config  *config.Config
	Service *core.Service
	Backend store.Backend
	Catalog *store.CachedCatalog

	closeBackend func()
}

// Open connects the configured store and attachment backend and builds the
// import service on top of them. The caller must Close the App.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	backend, closeBackend, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	files, err := attachment.Open(ctx, cfg.Attachments)
	if err != nil {
		closeBackend()
		return nil, fmt.Errorf("open %s attachment store: %w", cfg.Attachments.Backend, err)
	}

	catalog := store.NewCachedCatalog(backend, cfg.Cache.Size, cfg.Cache.TTL)

	svc, err := core.NewService(core.Deps{
		Rows:        sheet.NewReader(files, cfg.Import.MaxFileSize),
		Attachments: files,
		Catalog:     catalog,
		Trees:       backend,
		Requests:    backend,
	}, Options(cfg.Import))
	if err != nil {
		closeBackend()
		return nil, err
	}

	slog.Info("importer ready",
		"store", cfg.Store.Backend,
		"attachments", cfg.Attachments.Backend,
		"catalog_cache", cfg.Cache.Size,
		"max_concurrent_imports", cfg.Import.MaxConcurrent,
	)

	return &App{
		Config:       cfg,
		Service:      svc,
		Backend:      backend,
		Catalog:      catalog,
		closeBackend: closeBackend,
	}, nil
}

// Close releases the store connection.
func (a *App) Close() {
	if a.closeBackend != nil {
		a.closeBackend()
	}
}

// SetValuationRate updates an item's rate and drops its cached lookups.
func (a *App) SetValuationRate(ctx context.Context, code string, rate float64) error {
	if err := a.Backend.SetValuationRate(ctx, code, rate); err != nil {
		return err
	}
	a.Catalog.Purge(code)
	return nil
}

// Options maps import configuration onto service options.
func Options(c config.ImportConfig) core.Options {
	return core.Options{
		Company:       c.DefaultCompany,
		Currency:      c.DefaultCurrency,
		DefaultUOM:    c.DefaultUOM,
		RootItemGroup: c.RootItemGroup,
		MaxConcurrent: c.MaxConcurrent,
		MaxWait:       c.MaxWaitTime,
		Timeout:       c.Timeout,
	}
}
