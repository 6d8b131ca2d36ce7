// Package mongodb is the MongoDB core.Store. Each BOM tree is one document
// holding its rows; derived BOMs and import requests live in their own
// collections.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colItems      = "items"
	colItemGroups = "item_groups"
	colTrees      = "bom_trees"
	colBOMs       = "boms"
	colRequests   = "import_requests"
)

// Store implements core.Store on a MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

var _ core.Store = (*Store)(nil)

// Connect dials cfg.URI and pings the server.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	slog.Info("connected to mongodb", "database", cfg.Database)
	return &Store{client: client, db: client.Database(cfg.Database), timeout: timeout}, nil
}

// Migrate creates indexes and the root item group. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colBOMs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bom_tree", Value: 1}, {Key: "docstatus", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create boms index: %w", err)
	}

	_, err = s.db.Collection(colBOMs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "item_code", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create boms item index: %w", err)
	}

	_, err = s.db.Collection(colItemGroups).UpdateOne(ctx,
		bson.M{"_id": "All Item Groups"},
		bson.M{"$setOnInsert": bson.M{"parent_item_group": "", "is_group": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("create root item group: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// opCtx bounds a single database operation.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// duplicateKey rewrites a duplicate key error so its text names the cause.
func duplicateKey(what, key string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("duplicate key: %s %q already exists: %w", what, key, err)
	}
	return err
}

// --- core.RequestStore ---

type requestDoc struct {
	ID        string    `bson:"_id"`
	FileRef   string    `bson:"file_ref"`
	FileName  string    `bson:"file_name"`
	ItemLog   string    `bson:"item_creation_log"`
	TreeLog   string    `bson:"bom_creation_log"`
	TreeName  string    `bson:"bom_tree,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *Store) CreateRequest(ctx context.Context, req core.Request) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(colRequests).InsertOne(ctx, requestDoc{
		ID:        req.ID,
		FileRef:   req.FileRef,
		FileName:  req.FileName,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert import request: %w", duplicateKey("import request", req.ID, err))
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (core.Request, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc requestDoc
	err := s.db.Collection(colRequests).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Request{}, core.ErrRequestNotFound
	}
	if err != nil {
		return core.Request{}, fmt.Errorf("get import request: %w", err)
	}

	return core.Request{
		ID:        doc.ID,
		FileRef:   doc.FileRef,
		FileName:  doc.FileName,
		ItemLog:   doc.ItemLog,
		TreeLog:   doc.TreeLog,
		TreeName:  doc.TreeName,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Store) SaveItemLog(ctx context.Context, id, log string) error {
	return s.updateRequest(ctx, id, bson.M{"item_creation_log": log})
}

func (s *Store) SaveTreeLog(ctx context.Context, id, log, treeName string) error {
	return s.updateRequest(ctx, id, bson.M{"bom_creation_log": log, "bom_tree": treeName})
}

func (s *Store) updateRequest(ctx context.Context, id string, set bson.M) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	set["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(colRequests).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update import request: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrRequestNotFound
	}
	return nil
}
