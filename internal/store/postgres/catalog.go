package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/jackc/pgx/v5"
)

func (s *Store) ItemExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return exists, nil
}

// DefaultUOM returns "" for unknown items.
func (s *Store) DefaultUOM(ctx context.Context, code string) (string, error) {
	var uom string
	err := s.pool.QueryRow(ctx, `SELECT stock_uom FROM items WHERE code = $1`, code).Scan(&uom)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get stock uom: %w", err)
	}
	return uom, nil
}

// ValuationRate returns 0 for unknown items.
func (s *Store) ValuationRate(ctx context.Context, code string) (float64, error) {
	var rate float64
	err := s.pool.QueryRow(ctx, `SELECT valuation_rate FROM items WHERE code = $1`, code).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get valuation rate: %w", err)
	}
	return rate, nil
}

func (s *Store) EnsureItemGroup(ctx context.Context, name, parent string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO item_groups (name, parent_item_group, is_group)
VALUES ($1, $2, false)
ON CONFLICT (name) DO NOTHING`, name, parent)
	if err != nil {
		return fmt.Errorf("insert item group: %w", err)
	}
	return nil
}

func (s *Store) CreateItem(ctx context.Context, item core.Item) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO items (code, name, item_group, stock_uom, description, gst_hsn_code, material,
                   length, width, height, diameter, thickness, weight)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.Code, item.Name, item.Group, item.StockUOM, item.Description, item.HSNCode, item.Material,
		item.Length, item.Width, item.Height, item.Diameter, item.Thickness, item.Weight)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// SetValuationRate updates an item's valuation rate. Rates are maintained
// by stock transactions outside imports; this covers seeding.
func (s *Store) SetValuationRate(ctx context.Context, code string, rate float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE items SET valuation_rate = $2 WHERE code = $1`, code, rate)
	if err != nil {
		return fmt.Errorf("set valuation rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrItemNotFound, code)
	}
	return nil
}
