package core

import (
	"context"
	"time"
)

// Field is a canonical column of a parts-list file.
type Field string

const (
	FieldItemCode       Field = "item_code"
	FieldItemName       Field = "item_name"
	FieldDescription    Field = "description"
	FieldHSNCode        Field = "gst_hsn_code"
	FieldMaterial       Field = "custom_material"
	FieldLength         Field = "custom_length"
	FieldWidth          Field = "custom_width"
	FieldHeight         Field = "custom_height"
	FieldDiameter       Field = "custom_diameter"
	FieldThickness      Field = "custom_thickness"
	FieldWeight         Field = "custom_weight"
	FieldItemGroup      Field = "item_group"
	FieldStockUOM       Field = "stock_uom"
	FieldStructureLevel Field = "structure_level"
	FieldQty            Field = "qty"
)

// HeaderMap maps a column position to the canonical field it carries.
// Columns whose header has no alias are absent.
type HeaderMap map[int]Field

// Has reports whether any column maps to f.
func (h HeaderMap) Has(f Field) bool {
	for _, v := range h {
		if v == f {
			return true
		}
	}
	return false
}

// RowData is one file row keyed by canonical field, values trimmed.
// A field is absent when its column is missing or the row is too short.
type RowData map[Field]string

// Node is a parsed BOM row.
type Node struct {
	RowIndex  int     `json:"row"`
	Level     int     `json:"level"`
	ItemCode  string  `json:"item_code"`
	ItemName  string  `json:"item_name,omitempty"`
	ItemGroup string  `json:"item_group,omitempty"`
	Qty       float64 `json:"qty"`
	UOM       string  `json:"uom,omitempty"`
}

// Item is an inventory item as created by the flat import.
type Item struct {
	Code        string
	Name        string
	Group       string
	StockUOM    string
	Description string
	HSNCode     string
	Material    string
	Length      float64
	Width       float64
	Height      float64
	Diameter    float64
	Thickness   float64
	Weight      float64
}

// RMCostValuationRate is the only costing basis imports use.
const RMCostValuationRate = "Valuation Rate"

// TreeRoot is the header of a BOM tree.
type TreeRoot struct {
	Name        string
	ItemCode    string
	ItemName    string
	ItemGroup   string
	Company     string
	Currency    string
	Qty         float64
	UOM         string
	RMCostAsPer string
}

// TreeRow is one item row of a BOM tree. RowNo is assigned by the store on
// append; ParentRowNo is 0 when the parent is the tree root.
type TreeRow struct {
	RowNo                int     `json:"row_no"`
	ItemCode             string  `json:"item_code"`
	ItemName             string  `json:"item_name,omitempty"`
	ItemGroup            string  `json:"item_group,omitempty"`
	FGItem               string  `json:"fg_item"`
	Qty                  float64 `json:"qty"`
	UOM                  string  `json:"uom"`
	StockUOM             string  `json:"stock_uom"`
	StockQty             float64 `json:"stock_qty"`
	Rate                 float64 `json:"rate"`
	Amount               float64 `json:"amount"`
	AllowAlternativeItem bool    `json:"allow_alternative_item"`
	ParentRowNo          int     `json:"parent_row_no,omitempty"`
}

// Request is an import request: an attached parts-list file plus the logs
// of the imports run against it.
type Request struct {
	ID        string    `json:"id"`
	FileRef   string    `json:"file_ref"`
	FileName  string    `json:"file_name"`
	ItemLog   string    `json:"item_creation_log,omitempty"`
	TreeLog   string    `json:"bom_creation_log,omitempty"`
	TreeName  string    `json:"bom_tree,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RowSource reads the rows of an attached file, header row first.
type RowSource interface {
	Rows(ctx context.Context, fileRef string) ([][]string, error)
}

// AttachmentWriter stores uploaded files.
type AttachmentWriter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Catalog is the item master.
type Catalog interface {
	ItemExists(ctx context.Context, code string) (bool, error)
	DefaultUOM(ctx context.Context, code string) (string, error)
	ValuationRate(ctx context.Context, code string) (float64, error)
	EnsureItemGroup(ctx context.Context, name, parent string) error
	CreateItem(ctx context.Context, item Item) error
}

// TreeStore persists BOM trees and the BOMs derived from them.
type TreeStore interface {
	TreeExists(ctx context.Context, name string) (bool, error)
	BeginTree(ctx context.Context, root TreeRoot) (TreeWriter, error)
	// LatestBOM returns the newest submitted BOM derived from treeName.
	LatestBOM(ctx context.Context, treeName string) (string, bool, error)
}

// TreeWriter appends rows to a tree being built. Nothing is visible to
// readers until Finalize succeeds; Abort discards the tree.
type TreeWriter interface {
	Append(ctx context.Context, row TreeRow) (int, error)
	Finalize(ctx context.Context, rawMaterialCost float64) (string, error)
	Abort(ctx context.Context) error
}

// RequestStore persists import requests and their logs.
type RequestStore interface {
	CreateRequest(ctx context.Context, req Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	SaveItemLog(ctx context.Context, id, log string) error
	SaveTreeLog(ctx context.Context, id, log, treeName string) error
}

// Store is implemented by each persistence backend.
type Store interface {
	Catalog
	TreeStore
	RequestStore
}
