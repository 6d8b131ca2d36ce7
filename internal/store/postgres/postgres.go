// Package postgres is the PostgreSQL core.Store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store implements core.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// --- core.RequestStore ---

func (s *Store) CreateRequest(ctx context.Context, req core.Request) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO import_requests (id, file_ref, file_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.FileRef, req.FileName, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert import request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (core.Request, error) {
	var (
		req      core.Request
		treeName *string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, file_ref, file_name, item_creation_log, bom_creation_log, bom_tree, created_at, updated_at
FROM import_requests WHERE id = $1`, id).Scan(
		&req.ID, &req.FileRef, &req.FileName, &req.ItemLog, &req.TreeLog, &treeName,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Request{}, core.ErrRequestNotFound
	}
	if err != nil {
		return core.Request{}, fmt.Errorf("get import request: %w", err)
	}
	if treeName != nil {
		req.TreeName = *treeName
	}
	return req, nil
}

func (s *Store) SaveItemLog(ctx context.Context, id, log string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE import_requests SET item_creation_log = $2, updated_at = now() WHERE id = $1`, id, log)
	if err != nil {
		return fmt.Errorf("save item log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRequestNotFound
	}
	return nil
}

func (s *Store) SaveTreeLog(ctx context.Context, id, log, treeName string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE import_requests SET bom_creation_log = $2, bom_tree = $3, updated_at = now() WHERE id = $1`,
		id, log, treeName)
	if err != nil {
		return fmt.Errorf("save bom log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRequestNotFound
	}
	return nil
}
