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

type itemDoc struct {
	Code          string    `bson:"_id"`
	Name          string    `bson:"item_name"`
	Group         string    `bson:"item_group"`
	StockUOM      string    `bson:"stock_uom"`
	Description   string    `bson:"description,omitempty"`
	HSNCode       string    `bson:"gst_hsn_code,omitempty"`
	Material      string    `bson:"material,omitempty"`
	Length        float64   `bson:"length"`
	Width         float64   `bson:"width"`
	Height        float64   `bson:"height"`
	Diameter      float64   `bson:"diameter"`
	Thickness     float64   `bson:"thickness"`
	Weight        float64   `bson:"weight"`
	ValuationRate float64   `bson:"valuation_rate"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (s *Store) ItemExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.db.Collection(colItems).CountDocuments(ctx, bson.M{"_id": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return n > 0, nil
}

// findItem returns nil for unknown items.
func (s *Store) findItem(ctx context.Context, code string) (*itemDoc, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc itemDoc
	err := s.db.Collection(colItems).FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DefaultUOM returns "" for unknown items.
func (s *Store) DefaultUOM(ctx context.Context, code string) (string, error) {
	doc, err := s.findItem(ctx, code)
	if err != nil {
		return "", fmt.Errorf("get stock uom: %w", err)
	}
	if doc == nil {
		return "", nil
	}
	return doc.StockUOM, nil
}

// ValuationRate returns 0 for unknown items.
func (s *Store) ValuationRate(ctx context.Context, code string) (float64, error) {
	doc, err := s.findItem(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("get valuation rate: %w", err)
	}
	if doc == nil {
		return 0, nil
	}
	return doc.ValuationRate, nil
}

func (s *Store) EnsureItemGroup(ctx context.Context, name, parent string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colItemGroups).UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$setOnInsert": bson.M{"parent_item_group": parent, "is_group": false}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("upsert item group: %w", err)
	}
	return nil
}

func (s *Store) CreateItem(ctx context.Context, item core.Item) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colItems).InsertOne(ctx, itemDoc{
		Code:        item.Code,
		Name:        item.Name,
		Group:       item.Group,
		StockUOM:    item.StockUOM,
		Description: item.Description,
		HSNCode:     item.HSNCode,
		Material:    item.Material,
		Length:      item.Length,
		Width:       item.Width,
		Height:      item.Height,
		Diameter:    item.Diameter,
		Thickness:   item.Thickness,
		Weight:      item.Weight,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert item: %w", duplicateKey("item", item.Code, err))
	}
	return nil
}

// SetValuationRate updates an item's valuation rate. Rates are maintained
// by stock transactions outside imports; this covers seeding.
func (s *Store) SetValuationRate(ctx context.Context, code string, rate float64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.Collection(colItems).UpdateOne(ctx, bson.M{"_id": code}, bson.M{"$set": bson.M{"valuation_rate": rate}})
	if err != nil {
		return fmt.Errorf("set valuation rate: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", core.ErrItemNotFound, code)
	}
	return nil
}
