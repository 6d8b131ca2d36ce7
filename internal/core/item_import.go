package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bomimport/internal/logging"
)

// ImportItems creates one inventory item per file row. Rows never abort the
// run: each ends up created, duplicate, skipped or failed in the log, which
// is saved onto the request.
func (s *Service) ImportItems(ctx context.Context, requestID string) (*ImportResult, error) {
	var result *ImportResult

	err := s.run(ctx, KindItems, func(ctx context.Context) (*ImportLog, error) {
		req, rows, err := s.requestRows(ctx, requestID)
		if err != nil {
			return nil, err
		}

		headers := BuildHeaderMap(rows[0])
		if !headers.Has(FieldItemCode) {
			return nil, ErrMissingItemCodeColumn
		}

		logger := logging.ForImport(ctx, req.ID, string(KindItems)).With(OriginFrom(ctx).logArgs()...)
		logger.Info("item import started", "rows", len(rows)-1)

		log := NewImportLog(KindItems)
		for i, row := range rows[1:] {
			if err := ctx.Err(); err != nil {
				return log, err
			}
			if IsBlankRow(row) {
				continue
			}

			r := s.importItemRow(ctx, i+2, ExtractRow(row, headers))
			if r.Err != nil {
				logger.Error("item row failed", "row", r.Row, "item_code", r.ItemCode, "error", r.Err)
			}
			log.Record(r)
		}

		text := log.String()
		if err := s.requests.SaveItemLog(ctx, req.ID, text); err != nil {
			return log, fmt.Errorf("save item log: %w", err)
		}

		logger.Info("item import finished",
			"created", log.Created, "duplicates", log.Duplicates,
			"skipped", log.Skipped, "errors", log.Errors)

		result = &ImportResult{Summary: log.Summary(), Log: text, Details: log}
		return log, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// importItemRow decides and applies the outcome of a single row. The item
// group is ensured before the duplicate check, so duplicates still get
// their group created.
func (s *Service) importItemRow(ctx context.Context, rowIdx int, data RowData) RowResult {
	code := data[FieldItemCode]
	if code == "" {
		return skipped(rowIdx, "", ReasonMissingCode)
	}

	group := data[FieldItemGroup]
	if group == "" {
		return skipped(rowIdx, code, ReasonMissingGroup)
	}

	if err := s.catalog.EnsureItemGroup(ctx, group, s.opts.RootItemGroup); err != nil {
		return failed(rowIdx, code, ReasonGroupFailed, fmt.Errorf("ensure item group %q: %w", group, err))
	}

	exists, err := s.catalog.ItemExists(ctx, code)
	if err != nil {
		return failed(rowIdx, code, ReasonSeeErrorLog, fmt.Errorf("look up item: %w", err))
	}
	if exists {
		return RowResult{Row: rowIdx, ItemCode: code, Outcome: OutcomeDuplicate, Reason: ReasonExists}
	}

	if err := s.catalog.CreateItem(ctx, itemFromRow(code, group, data, s.opts.DefaultUOM)); err != nil {
		return failed(rowIdx, code, ReasonSeeErrorLog, fmt.Errorf("create item: %w", err))
	}
	return created(rowIdx, code)
}

// itemFromRow fills an Item from row data. Name falls back to the code and
// stock unit to defaultUOM; dimensions that are empty or not numbers are 0.
func itemFromRow(code, group string, data RowData, defaultUOM string) Item {
	item := Item{
		Code:        code,
		Name:        data[FieldItemName],
		Group:       group,
		StockUOM:    data[FieldStockUOM],
		Description: data[FieldDescription],
		HSNCode:     data[FieldHSNCode],
		Material:    data[FieldMaterial],
		Length:      ToFloat(data[FieldLength]),
		Width:       ToFloat(data[FieldWidth]),
		Height:      ToFloat(data[FieldHeight]),
		Diameter:    ToFloat(data[FieldDiameter]),
		Thickness:   ToFloat(data[FieldThickness]),
		Weight:      ToFloat(data[FieldWeight]),
	}
	if item.Name == "" {
		item.Name = code
	}
	if item.StockUOM == "" {
		item.StockUOM = defaultUOM
	}
	return item
}
