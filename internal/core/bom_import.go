package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/bomimport/internal/logging"
)

// treeJob is everything decided before the first child row is placed.
type treeJob struct {
	req      Request
	root     Node
	children []Node
	name     string
	rootUOM  string
}

// ParseNodes turns data rows into BOM nodes. rows excludes the header, so
// the first data row is file row 2. Blank rows and rows lacking a structure
// level or item code are dropped without a log line.
func ParseNodes(rows [][]string, headers HeaderMap) []Node {
	nodes := make([]Node, 0, len(rows))
	for i, row := range rows {
		if IsBlankRow(row) {
			continue
		}

		data := ExtractRow(row, headers)
		level, code := data[FieldStructureLevel], data[FieldItemCode]
		if level == "" || code == "" {
			continue
		}

		qty, hint := ParseQty(data[FieldQty])
		uom := data[FieldStockUOM]
		if uom == "" && hint != "" {
			uom = MapQtyUOM(hint)
		}

		nodes = append(nodes, Node{
			RowIndex:  i + 2,
			Level:     ToInt(level),
			ItemCode:  code,
			ItemName:  data[FieldItemName],
			ItemGroup: data[FieldItemGroup],
			Qty:       qty,
			UOM:       uom,
		})
	}
	return nodes
}

// prepareTree runs every abort-class check of a tree import, in order, and
// resolves the tree name. Nothing is written.
func (s *Service) prepareTree(ctx context.Context, requestID string) (*treeJob, error) {
	req, rows, err := s.requestRows(ctx, requestID)
	if err != nil {
		return nil, err
	}

	headers := BuildHeaderMap(rows[0])
	if !headers.Has(FieldStructureLevel) {
		return nil, ErrMissingLevelColumn
	}
	if !headers.Has(FieldItemCode) {
		return nil, ErrMissingItemCodeColumn
	}

	root, children, err := SelectRoot(ParseNodes(rows[1:], headers))
	if err != nil {
		return nil, err
	}

	found, err := s.catalog.ItemExists(ctx, root.ItemCode)
	if err != nil {
		return nil, fmt.Errorf("look up root item %s: %w", root.ItemCode, err)
	}
	if !found {
		return nil, &rootItemError{code: root.ItemCode}
	}

	if s.opts.Company == "" {
		return nil, ErrNoDefaultCompany
	}
	if s.opts.Currency == "" {
		return nil, &currencyError{company: s.opts.Company}
	}

	name, err := UniqueTreeName(ctx, root.ItemCode, s.trees.TreeExists)
	if err != nil {
		return nil, err
	}

	rootUOM := root.UOM
	if rootUOM == "" {
		if rootUOM, err = s.catalog.DefaultUOM(ctx, root.ItemCode); err != nil {
			return nil, fmt.Errorf("look up unit of root item %s: %w", root.ItemCode, err)
		}
	}

	return &treeJob{req: req, root: root, children: children, name: name, rootUOM: rootUOM}, nil
}

// ImportBOMTree rebuilds the BOM tree described by the request's file,
// stores and submits it, and saves the log and tree name onto the request.
func (s *Service) ImportBOMTree(ctx context.Context, requestID string) (*ImportResult, error) {
	var result *ImportResult

	err := s.run(ctx, KindBOMTree, func(ctx context.Context) (*ImportLog, error) {
		job, err := s.prepareTree(ctx, requestID)
		if err != nil {
			return nil, err
		}

		logger := logging.ForImport(ctx, job.req.ID, string(KindBOMTree)).
			With("bom_tree", job.name).
			With(OriginFrom(ctx).logArgs()...)
		logger.Info("bom tree import started", "root", job.root.ItemCode, "nodes", len(job.children)+1)

		writer, err := s.trees.BeginTree(ctx, TreeRoot{
			Name:        job.name,
			ItemCode:    job.root.ItemCode,
			ItemName:    job.root.ItemName,
			ItemGroup:   job.root.ItemGroup,
			Company:     s.opts.Company,
			Currency:    s.opts.Currency,
			Qty:         positiveQty(job.root.Qty),
			UOM:         job.rootUOM,
			RMCostAsPer: RMCostValuationRate,
		})
		if err != nil {
			return nil, fmt.Errorf("begin bom tree %s: %w", job.name, err)
		}

		var stored []TreeRow
		place := func(ctx context.Context, p Placement) (int, error) {
			row, err := s.treeRow(ctx, p)
			if err != nil {
				return 0, err
			}
			rowNo, err := writer.Append(ctx, row)
			if err != nil {
				return 0, fmt.Errorf("append row: %w", err)
			}
			row.RowNo = rowNo
			stored = append(stored, row)
			return rowNo, nil
		}

		_, results, err := NewTreeBuilder(job.root).Build(ctx, job.children, s.catalog.ItemExists, place)
		if err != nil {
			abortTree(ctx, writer, logger)
			return nil, err
		}

		log := NewImportLog(KindBOMTree)
		log.TreeName = job.name
		for _, r := range results {
			if r.Err != nil {
				logger.Error("bom row failed", "row", r.Row, "item_code", r.ItemCode, "error", r.Err)
			}
			log.Record(r)
		}

		bom, err := writer.Finalize(ctx, RawMaterialCost(stored))
		if err != nil {
			abortTree(ctx, writer, logger)
			return log, fmt.Errorf("submit bom tree %s: %w", job.name, err)
		}

		text := log.String()
		if err := s.requests.SaveTreeLog(ctx, job.req.ID, text, job.name); err != nil {
			return log, fmt.Errorf("save bom log: %w", err)
		}

		logger.Info("bom tree import finished", "bom", bom,
			"items", log.Created, "skipped", log.Skipped, "errors", log.Errors)

		result = &ImportResult{Summary: log.Summary(), Log: text, Tree: job.name, BOM: bom, Details: log}
		return log, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// treeRow builds the stored row for a placement. The row's unit falls back
// to the item's stock unit; the rate is the item's valuation rate.
func (s *Service) treeRow(ctx context.Context, p Placement) (TreeRow, error) {
	n := p.Node

	uom := n.UOM
	if uom == "" {
		var err error
		if uom, err = s.catalog.DefaultUOM(ctx, n.ItemCode); err != nil {
			return TreeRow{}, fmt.Errorf("look up unit: %w", err)
		}
	}

	rate, err := s.catalog.ValuationRate(ctx, n.ItemCode)
	if err != nil {
		return TreeRow{}, fmt.Errorf("look up valuation rate: %w", err)
	}

	qty := positiveQty(n.Qty)
	return TreeRow{
		ItemCode:             n.ItemCode,
		ItemName:             n.ItemName,
		ItemGroup:            n.ItemGroup,
		FGItem:               p.ParentCode,
		Qty:                  qty,
		UOM:                  uom,
		StockUOM:             uom,
		StockQty:             qty,
		Rate:                 rate,
		Amount:               qty * rate,
		AllowAlternativeItem: true,
		ParentRowNo:          p.ParentRowNo,
	}, nil
}

// abortTree discards a partly written tree. It runs even when ctx is done.
func abortTree(ctx context.Context, w TreeWriter, logger *slog.Logger) {
	if err := w.Abort(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("abort bom tree", "error", err)
	}
}

// TreePreview is what ImportBOMTree would do, computed without writing.
type TreePreview struct {
	Tree       string      `json:"bom_tree"`
	Root       Node        `json:"root"`
	RootUOM    string      `json:"root_uom"`
	Placements []Placement `json:"placements"`
	Summary    string      `json:"summary"`
	Log        string      `json:"log"`
	Details    *ImportLog  `json:"details"`
}

// PreviewBOMTree runs the same checks and tree building as ImportBOMTree
// against the live catalog, but numbers rows locally and stores nothing.
// The reported tree name may be taken by the time the import runs.
func (s *Service) PreviewBOMTree(ctx context.Context, requestID string) (*TreePreview, error) {
	job, err := s.prepareTree(ctx, requestID)
	if err != nil {
		return nil, err
	}

	next := 0
	place := func(context.Context, Placement) (int, error) {
		next++
		return next, nil
	}

	placements, results, err := NewTreeBuilder(job.root).Build(ctx, job.children, s.catalog.ItemExists, place)
	if err != nil {
		return nil, err
	}

	log := NewImportLog(KindBOMTree)
	log.TreeName = job.name
	for _, r := range results {
		log.Record(r)
	}

	return &TreePreview{
		Tree:       job.name,
		Root:       job.root,
		RootUOM:    job.rootUOM,
		Placements: placements,
		Summary:    log.Summary(),
		Log:        log.String(),
		Details:    log,
	}, nil
}

func positiveQty(q float64) float64 {
	if q <= 0 {
		return 1
	}
	return q
}
