package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) TreeExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bom_trees WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bom tree: %w", err)
	}
	return exists, nil
}

func (s *Store) LatestBOM(ctx context.Context, treeName string) (string, bool, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
SELECT name FROM boms
WHERE bom_tree = $1 AND docstatus = 1
ORDER BY created_at DESC, name DESC
LIMIT 1`, treeName).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get latest bom: %w", err)
	}
	return name, true, nil
}

// BeginTree opens a transaction and inserts the tree header as a draft.
// The tree name is the primary key, so a second import racing for the same
// name fails here with a duplicate key error.
func (s *Store) BeginTree(ctx context.Context, root core.TreeRoot) (core.TreeWriter, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO bom_trees (name, item_code, item_name, item_group, company, currency, qty, uom, rm_cost_as_per)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		root.Name, root.ItemCode, root.ItemName, root.ItemGroup, root.Company, root.Currency,
		root.Qty, root.UOM, root.RMCostAsPer)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("insert bom tree: %w", err)
	}

	return &treeWriter{tx: tx, root: root}, nil
}

// treeWriter appends rows inside one transaction, each behind a savepoint
// so a failed row leaves the rest of the tree intact.
type treeWriter struct {
	tx    pgx.Tx
	root  core.TreeRoot
	rowNo int
}

func (w *treeWriter) Append(ctx context.Context, row core.TreeRow) (int, error) {
	rowNo := w.rowNo + 1
	savepointName := fmt.Sprintf("sp_%d", rowNo)

	if _, err := w.tx.Exec(ctx, fmt.Sprintf("SAVEPOINT %s", savepointName)); err != nil {
		return 0, fmt.Errorf("create savepoint: %w", err)
	}

	parent := pgtype.Int4{Int32: int32(row.ParentRowNo), Valid: row.ParentRowNo > 0}
	_, err := w.tx.Exec(ctx, `
INSERT INTO bom_tree_items (bom_tree, row_no, item_code, item_name, item_group, fg_item, qty, uom,
                            stock_uom, stock_qty, rate, amount, allow_alternative_item, parent_row_no)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		w.root.Name, rowNo, row.ItemCode, row.ItemName, row.ItemGroup, row.FGItem, row.Qty, row.UOM,
		row.StockUOM, row.StockQty, row.Rate, row.Amount, row.AllowAlternativeItem, parent)
	if err != nil {
		_, _ = w.tx.Exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", savepointName))
		return 0, fmt.Errorf("insert bom tree row: %w", err)
	}

	_, _ = w.tx.Exec(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", savepointName))
	w.rowNo = rowNo
	return rowNo, nil
}

// Finalize submits the tree, derives its BOM and commits.
func (w *treeWriter) Finalize(ctx context.Context, rawMaterialCost float64) (string, error) {
	_, err := w.tx.Exec(ctx, `
UPDATE bom_trees SET docstatus = 1, raw_material_cost = $2, submitted_at = now() WHERE name = $1`,
		w.root.Name, rawMaterialCost)
	if err != nil {
		return "", fmt.Errorf("submit bom tree: %w", err)
	}

	bom, err := w.insertBOM(ctx)
	if err != nil {
		return "", err
	}

	if err := w.tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return bom, nil
}

// insertBOM numbers the derived BOM from the item's BOM count and moves to
// the next number while the name is taken by a concurrent finalize.
func (w *treeWriter) insertBOM(ctx context.Context) (string, error) {
	var seq int
	err := w.tx.QueryRow(ctx, `SELECT count(*) + 1 FROM boms WHERE item_code = $1`, w.root.ItemCode).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("number bom: %w", err)
	}

	for attempt := 0; attempt < core.MaxBOMNameAttempts; attempt++ {
		bom := core.BOMName(w.root.ItemCode, seq)
		tag, err := w.tx.Exec(ctx, `
INSERT INTO boms (name, item_code, bom_tree) VALUES ($1, $2, $3)
ON CONFLICT (name) DO NOTHING`,
			bom, w.root.ItemCode, w.root.Name)
		if err != nil {
			return "", fmt.Errorf("insert bom: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return bom, nil
		}
		seq++
	}
	return "", fmt.Errorf("insert bom: duplicate key: no free bom name for item %s", w.root.ItemCode)
}

// Abort rolls back. It is a no-op after a successful Finalize.
func (w *treeWriter) Abort(ctx context.Context) error {
	err := w.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
