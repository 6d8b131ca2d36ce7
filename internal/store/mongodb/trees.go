package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/bomimport/internal/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type treeRowDoc struct {
	RowNo                int     `bson:"row_no"`
	ItemCode             string  `bson:"item_code"`
	ItemName             string  `bson:"item_name,omitempty"`
	ItemGroup            string  `bson:"item_group,omitempty"`
	FGItem               string  `bson:"fg_item"`
	Qty                  float64 `bson:"qty"`
	UOM                  string  `bson:"uom"`
	StockUOM             string  `bson:"stock_uom"`
	StockQty             float64 `bson:"stock_qty"`
	Rate                 float64 `bson:"rate"`
	Amount               float64 `bson:"amount"`
	AllowAlternativeItem bool    `bson:"allow_alternative_item"`
	ParentRowNo          int     `bson:"parent_row_no,omitempty"`
}

type treeDoc struct {
	Name        string       `bson:"_id"`
	ItemCode    string       `bson:"item_code"`
	ItemName    string       `bson:"item_name,omitempty"`
	ItemGroup   string       `bson:"item_group,omitempty"`
	Company     string       `bson:"company"`
	Currency    string       `bson:"currency"`
	Qty         float64      `bson:"qty"`
	UOM         string       `bson:"uom"`
	RMCostAsPer string       `bson:"rm_cost_as_per"`
	Items       []treeRowDoc `bson:"items"`
	DocStatus   int          `bson:"docstatus"`
	CreatedAt   time.Time    `bson:"created_at"`
}

type bomDoc struct {
	Name      string    `bson:"_id"`
	ItemCode  string    `bson:"item_code"`
	Tree      string    `bson:"bom_tree"`
	DocStatus int       `bson:"docstatus"`
	CreatedAt time.Time `bson:"created_at"`
}

// TreeExists counts drafts too: a name is taken from BeginTree on.
func (s *Store) TreeExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.db.Collection(colTrees).CountDocuments(ctx, bson.M{"_id": name}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check bom tree: %w", err)
	}
	return n > 0, nil
}

func (s *Store) LatestBOM(ctx context.Context, treeName string) (string, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc bomDoc
	err := s.db.Collection(colBOMs).FindOne(ctx,
		bson.M{"bom_tree": treeName, "docstatus": 1},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get latest bom: %w", err)
	}
	return doc.Name, true, nil
}

// BeginTree inserts the tree as a draft. The name is the document id, so a
// second import racing for the same name fails here.
func (s *Store) BeginTree(ctx context.Context, root core.TreeRoot) (core.TreeWriter, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colTrees).InsertOne(opCtx, treeDoc{
		Name:        root.Name,
		ItemCode:    root.ItemCode,
		ItemName:    root.ItemName,
		ItemGroup:   root.ItemGroup,
		Company:     root.Company,
		Currency:    root.Currency,
		Qty:         root.Qty,
		UOM:         root.UOM,
		RMCostAsPer: root.RMCostAsPer,
		Items:       []treeRowDoc{},
		DocStatus:   0,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("insert bom tree: %w", duplicateKey("bom tree", root.Name, err))
	}
	return &treeWriter{store: s, root: root}, nil
}

// treeWriter collects rows in memory and writes them with the submit.
type treeWriter struct {
	store *Store
	root  core.TreeRoot
	rows  []treeRowDoc
	done  bool
}

func (w *treeWriter) Append(ctx context.Context, row core.TreeRow) (int, error) {
	if w.done {
		return 0, fmt.Errorf("bom tree %q is already closed", w.root.Name)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rowNo := len(w.rows) + 1
	w.rows = append(w.rows, treeRowDoc{
		RowNo:                rowNo,
		ItemCode:             row.ItemCode,
		ItemName:             row.ItemName,
		ItemGroup:            row.ItemGroup,
		FGItem:               row.FGItem,
		Qty:                  row.Qty,
		UOM:                  row.UOM,
		StockUOM:             row.StockUOM,
		StockQty:             row.StockQty,
		Rate:                 row.Rate,
		Amount:               row.Amount,
		AllowAlternativeItem: row.AllowAlternativeItem,
		ParentRowNo:          row.ParentRowNo,
	})
	return rowNo, nil
}

// Finalize writes the rows, submits the tree and inserts its BOM.
func (w *treeWriter) Finalize(ctx context.Context, rawMaterialCost float64) (string, error) {
	if w.done {
		return "", fmt.Errorf("bom tree %q is already closed", w.root.Name)
	}
	s := w.store
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.Collection(colTrees).UpdateOne(ctx,
		bson.M{"_id": w.root.Name, "docstatus": 0},
		bson.M{"$set": bson.M{
			"items":             w.rows,
			"raw_material_cost": rawMaterialCost,
			"docstatus":         1,
			"submitted_at":      time.Now().UTC(),
		}},
	)
	if err != nil {
		return "", fmt.Errorf("submit bom tree: %w", err)
	}
	if res.MatchedCount == 0 {
		return "", fmt.Errorf("submit bom tree: draft %q not found", w.root.Name)
	}

	bom, err := w.insertBOM(ctx)
	if err != nil {
		return "", err
	}

	w.done = true
	return bom, nil
}

// insertBOM numbers the derived BOM from the item's BOM count and moves to
// the next number while the name is taken by a concurrent finalize.
func (w *treeWriter) insertBOM(ctx context.Context) (string, error) {
	boms := w.store.db.Collection(colBOMs)
	n, err := boms.CountDocuments(ctx, bson.M{"item_code": w.root.ItemCode})
	if err != nil {
		return "", fmt.Errorf("number bom: %w", err)
	}

	seq := int(n) + 1
	for attempt := 0; attempt < core.MaxBOMNameAttempts; attempt++ {
		bom := core.BOMName(w.root.ItemCode, seq)
		_, err = boms.InsertOne(ctx, bomDoc{
			Name:      bom,
			ItemCode:  w.root.ItemCode,
			Tree:      w.root.Name,
			DocStatus: 1,
			CreatedAt: time.Now().UTC(),
		})
		if err == nil {
			return bom, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("insert bom: %w", err)
		}
		seq++
	}
	return "", fmt.Errorf("insert bom: %w", duplicateKey("bom", core.BOMName(w.root.ItemCode, seq-1), err))
}

// Abort deletes the draft. It is a no-op after a successful Finalize.
func (w *treeWriter) Abort(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true

	s := w.store
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colTrees).DeleteOne(ctx, bson.M{"_id": w.root.Name})
	if err != nil {
		return fmt.Errorf("delete draft bom tree: %w", err)
	}
	return nil
}
