package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bomimport/internal/attachment"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/sheet"
	"github.com/JonMunkholm/bomimport/internal/store/memory"
)

type harness struct {
	svc   *core.Service
	store *memory.Store
	files *attachment.MemoryStore
}

func newHarness(t *testing.T, opts core.Options) *harness {
	t.Helper()

	st := memory.New()
	files := attachment.NewMemoryStore()
	svc, err := core.NewService(core.Deps{
		Rows:        sheet.NewReader(files, 0),
		Attachments: files,
		Catalog:     st,
		Trees:       st,
		Requests:    st,
	}, opts)
	require.NoError(t, err)

	return &harness{svc: svc, store: st, files: files}
}

func defaultOptions() core.Options {
	return core.Options{Company: "Acme", Currency: "USD"}
}

// upload opens an import request for a CSV body.
func (h *harness) upload(t *testing.T, body string) string {
	t.Helper()
	req, err := h.svc.CreateRequest(context.Background(), "parts.csv", []byte(body))
	require.NoError(t, err)
	return req.ID
}

func (h *harness) seed(code, uom string, rate float64) {
	h.store.AddItem(core.Item{Code: code, Name: code, Group: "Products", StockUOM: uom}, rate)
}

const itemsCSV = "Number,Name,Part Type,UOM,Length,Material\n" +
	"BRK-1,Bracket,Hardware,,12.5,Steel\n" +
	"BRK-2,,Hardware,Box,,\n" +
	",Orphan,Hardware,,,\n" +
	"BRK-3,Third,,,,\n" +
	",,,,,\n"

func TestImportItems(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ctx := context.Background()
	id := h.upload(t, itemsCSV)

	res, err := h.svc.ImportItems(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "Created: 2, Duplicates: 0, Skipped: 2, Errors: 0.", res.Summary)
	assert.Equal(t, strings.Join([]string{
		"Created: 2, Duplicates: 0, Skipped: 2, Errors: 0.",
		"Row 2: created BRK-1.",
		"Row 3: created BRK-2.",
		"Row 4: skipped (missing item code).",
		"Row 5: skipped BRK-3 (missing part type / item group).",
	}, "\n"), res.Log)

	brk1, ok := h.store.Item("BRK-1")
	require.True(t, ok)
	assert.Equal(t, "Bracket", brk1.Name)
	assert.Equal(t, "Hardware", brk1.Group)
	assert.Equal(t, core.CountUOM, brk1.StockUOM)
	assert.Equal(t, 12.5, brk1.Length)
	assert.Equal(t, "Steel", brk1.Material)

	brk2, ok := h.store.Item("BRK-2")
	require.True(t, ok)
	assert.Equal(t, "BRK-2", brk2.Name, "name falls back to the code")
	assert.Equal(t, "Box", brk2.StockUOM)

	_, ok = h.store.Item("BRK-3")
	assert.False(t, ok)

	parent, ok := h.store.ItemGroup("Hardware")
	require.True(t, ok)
	assert.Equal(t, "All Item Groups", parent)

	req, err := h.svc.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res.Log, req.ItemLog)
}

func TestImportItemsIsIdempotent(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ctx := context.Background()
	id := h.upload(t, itemsCSV)

	_, err := h.svc.ImportItems(ctx, id)
	require.NoError(t, err)

	res, err := h.svc.ImportItems(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Created: 0, Duplicates: 2, Skipped: 2, Errors: 0.", res.Summary)
	assert.Contains(t, res.Log, "Row 2: duplicate BRK-1 (already exists).")
}

func TestImportItemsRowFailures(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.store.FailItemGroup("Broken", errors.New("group table locked"))
	h.store.FailCreateItem("BRK-2", errors.New("disk quota exceeded"))

	id := h.upload(t, "Number,Part Type\nBRK-1,Broken\nBRK-2,Hardware\nBRK-3,Hardware\n")

	res, err := h.svc.ImportItems(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "Created: 1, Duplicates: 0, Skipped: 0, Errors: 2.", res.Summary)
	assert.Contains(t, res.Log, "Row 2: failed BRK-1 (could not create item group).")
	assert.Contains(t, res.Log, "Row 3: failed BRK-2 (see error log).")
	assert.NotContains(t, res.Log, "disk quota")
}

func TestImportItemsMissingCodeColumn(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ctx := context.Background()
	id := h.upload(t, "Name,Part Type\nBracket,Hardware\n")

	_, err := h.svc.ImportItems(ctx, id)
	require.ErrorIs(t, err, core.ErrMissingItemCodeColumn)

	req, err := h.svc.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, req.ItemLog)
}

const treeCSV = "Structure Level,Number,Name,Qty,UOM\n" +
	"0,ASM-1,Assembly,1,\n" +
	"1,SUB-1,Sub,2,\n" +
	"2,P-1,Bolt,4 pcs,\n" +
	"2,P-2,Plate,1.5,\n" +
	"1,P-3,Nut,,\n"

func seedTree(h *harness) {
	h.seed("ASM-1", "Nos", 0)
	h.seed("SUB-1", "Nos", 10)
	h.seed("P-1", "Box", 2)
	h.seed("P-2", "Kg", 3)
	h.seed("P-3", "Nos", 4)
}

func TestImportBOMTree(t *testing.T) {
	h := newHarness(t, defaultOptions())
	seedTree(h)
	ctx := context.Background()
	id := h.upload(t, treeCSV)

	res, err := h.svc.ImportBOMTree(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "Created BOM tree ASM-1. Items: 4, Skipped: 0, Errors: 0.", res.Summary)
	assert.Equal(t, res.Summary, res.Log, "created rows are not listed")
	assert.Equal(t, "ASM-1", res.Tree)
	assert.Equal(t, "BOM-ASM-1-001", res.BOM)

	tree, ok := h.store.Tree("ASM-1")
	require.True(t, ok)
	assert.True(t, tree.Submitted)
	assert.Equal(t, "Acme", tree.Root.Company)
	assert.Equal(t, "USD", tree.Root.Currency)
	assert.Equal(t, "Nos", tree.Root.UOM)
	assert.Equal(t, core.RMCostValuationRate, tree.Root.RMCostAsPer)
	assert.InDelta(t, 16.5, tree.RawMaterialCost, 1e-9)

	require.Len(t, tree.Rows, 4)
	byCode := map[string]core.TreeRow{}
	for _, r := range tree.Rows {
		byCode[r.ItemCode] = r
	}

	assert.Equal(t, "ASM-1", byCode["SUB-1"].FGItem)
	assert.Equal(t, 0, byCode["SUB-1"].ParentRowNo)
	assert.Equal(t, 20.0, byCode["SUB-1"].Amount)

	assert.Equal(t, "SUB-1", byCode["P-1"].FGItem)
	assert.Equal(t, byCode["SUB-1"].RowNo, byCode["P-1"].ParentRowNo)
	assert.Equal(t, 4.0, byCode["P-1"].Qty)
	assert.Equal(t, "Nos", byCode["P-1"].UOM, "qty unit hint wins over the stock unit")

	assert.Equal(t, "Kg", byCode["P-2"].UOM)
	assert.Equal(t, 1.5, byCode["P-2"].Qty)

	assert.Equal(t, "ASM-1", byCode["P-3"].FGItem)
	assert.Equal(t, 1.0, byCode["P-3"].Qty, "empty qty defaults to 1")
	assert.True(t, byCode["P-3"].AllowAlternativeItem)

	req, err := h.svc.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ASM-1", req.TreeName)
	assert.Equal(t, res.Log, req.TreeLog)

	bom, ok, err := h.svc.LatestBOM(ctx, "ASM-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BOM-ASM-1-001", bom)
}

func TestImportBOMTreeGrandchildUnderSecondChild(t *testing.T) {
	h := newHarness(t, defaultOptions())
	seedTree(h)
	id := h.upload(t, "Level,Item Code,Qty\n"+
		"0,ASM-1,1\n"+
		"1,SUB-1,1\n"+
		"1,P-3,2\n"+
		"2,P-1,3\n")

	res, err := h.svc.ImportBOMTree(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Created BOM tree ASM-1. Items: 3, Skipped: 0, Errors: 0.", res.Summary)

	tree, ok := h.store.Tree("ASM-1")
	require.True(t, ok)
	require.Len(t, tree.Rows, 3)

	assert.Equal(t, "SUB-1", tree.Rows[0].ItemCode)
	assert.Equal(t, 0, tree.Rows[0].ParentRowNo)
	assert.Equal(t, "P-3", tree.Rows[1].ItemCode)
	assert.Equal(t, 0, tree.Rows[1].ParentRowNo)
	assert.Equal(t, "P-1", tree.Rows[2].ItemCode)
	assert.Equal(t, tree.Rows[1].RowNo, tree.Rows[2].ParentRowNo)
	assert.Equal(t, "P-3", tree.Rows[2].FGItem)
}

func TestImportBOMTreeRevisions(t *testing.T) {
	h := newHarness(t, defaultOptions())
	seedTree(h)
	ctx := context.Background()
	id := h.upload(t, treeCSV)

	_, err := h.svc.ImportBOMTree(ctx, id)
	require.NoError(t, err)

	res, err := h.svc.ImportBOMTree(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ASM-1-REV1", res.Tree)
	assert.Equal(t, "BOM-ASM-1-002", res.BOM)
	assert.Equal(t, []string{"ASM-1", "ASM-1-REV1"}, h.store.TreeNames())

	req, err := h.svc.GetRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ASM-1-REV1", req.TreeName)

	bom, ok, err := h.svc.LatestBOM(ctx, "ASM-1-REV1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BOM-ASM-1-002", bom)

	_, ok, err = h.svc.LatestBOM(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImportBOMTreeSkippedRows(t *testing.T) {
	h := newHarness(t, defaultOptions())
	h.seed("ASM-1", "Nos", 0)
	h.seed("P-1", "Nos", 1)

	id := h.upload(t, "Level,Code,Qty\n"+
		"2,X-0,1\n"+
		"1,ASM-1,1\n"+
		"2,MISSING,1\n"+
		"3,P-1,1\n"+
		"1,P-1,1\n"+
		"2,P-1,1\n")

	res, err := h.svc.ImportBOMTree(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Created BOM tree ASM-1. Items: 1, Skipped: 3, Errors: 0.",
		"Row 4: skipped MISSING (item not found).",
		"Row 6: skipped P-1 (no parent found).",
		"Row 7: skipped P-1 (no parent found).",
	}, "\n"), res.Log)

	tree, ok := h.store.Tree("ASM-1")
	require.True(t, ok)
	require.Len(t, tree.Rows, 1)
	assert.Equal(t, "ASM-1", tree.Rows[0].FGItem, "a child of a skipped row attaches to the nearest stored ancestor")
}

func TestImportBOMTreeAppendFailure(t *testing.T) {
	h := newHarness(t, defaultOptions())
	seedTree(h)
	h.store.FailAppend("SUB-1", errors.New("disk quota exceeded"))
	id := h.upload(t, treeCSV)

	res, err := h.svc.ImportBOMTree(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "Created BOM tree ASM-1. Items: 3, Skipped: 0, Errors: 1.", res.Summary)
	assert.Contains(t, res.Log, "Row 3: failed SUB-1 (see error log).")
	assert.NotContains(t, res.Log, "disk quota")

	tree, ok := h.store.Tree("ASM-1")
	require.True(t, ok)
	for _, r := range tree.Rows {
		assert.Equal(t, "ASM-1", r.FGItem, "%s must not hang off the failed row", r.ItemCode)
	}
}

func TestImportBOMTreeAborts(t *testing.T) {
	tests := []struct {
		name    string
		opts    core.Options
		body    string
		wantErr error
	}{
		{
			name:    "missing level column",
			opts:    defaultOptions(),
			body:    "Number,Qty\nASM-1,1\n",
			wantErr: core.ErrMissingLevelColumn,
		},
		{
			name:    "missing item code column",
			opts:    defaultOptions(),
			body:    "Level,Qty\n1,1\n",
			wantErr: core.ErrMissingItemCodeColumn,
		},
		{
			name:    "header only",
			opts:    defaultOptions(),
			body:    "Level,Number\n",
			wantErr: core.ErrNoData,
		},
		{
			name:    "no row has both level and code",
			opts:    defaultOptions(),
			body:    "Level,Number\n,ASM-1\n1,\n",
			wantErr: core.ErrNoValidRows,
		},
		{
			name:    "root item missing",
			opts:    defaultOptions(),
			body:    "Level,Number\n1,NOPE\n2,ASM-1\n",
			wantErr: core.ErrRootItemNotFound,
		},
		{
			name:    "no default company",
			opts:    core.Options{Currency: "USD"},
			body:    "Level,Number\n1,ASM-1\n",
			wantErr: core.ErrNoDefaultCompany,
		},
		{
			name:    "no default currency",
			opts:    core.Options{Company: "Acme"},
			body:    "Level,Number\n1,ASM-1\n",
			wantErr: core.ErrNoDefaultCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts)
			h.seed("ASM-1", "Nos", 0)
			ctx := context.Background()
			id := h.upload(t, tt.body)

			_, err := h.svc.ImportBOMTree(ctx, id)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, core.IsAbort(err))

			assert.Empty(t, h.store.TreeNames())
			req, err := h.svc.GetRequest(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, req.TreeLog)
			assert.Empty(t, req.TreeName)
		})
	}
}

func TestImportBOMTreeRootMessage(t *testing.T) {
	h := newHarness(t, defaultOptions())
	id := h.upload(t, "Level,Number\n1,NOPE\n")

	_, err := h.svc.ImportBOMTree(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, "Root item NOPE not found. Please create the item first.", core.MapError(err).Message)
}

func TestImportRequestProblems(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ctx := context.Background()

	_, err := h.svc.ImportItems(ctx, "does-not-exist")
	assert.ErrorIs(t, err, core.ErrRequestNotFound)

	require.NoError(t, h.store.CreateRequest(ctx, core.Request{ID: "no-file"}))
	_, err = h.svc.ImportBOMTree(ctx, "no-file")
	assert.ErrorIs(t, err, core.ErrMissingAttachment)

	require.NoError(t, h.store.CreateRequest(ctx, core.Request{ID: "pdf", FileRef: "pdf/parts.pdf"}))
	_, err = h.svc.ImportItems(ctx, "pdf")
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)

	require.NoError(t, h.store.CreateRequest(ctx, core.Request{ID: "gone", FileRef: "gone/parts.csv"}))
	_, err = h.svc.ImportItems(ctx, "gone")
	assert.ErrorIs(t, err, attachment.ErrNotFound)
	assert.Equal(t, "ATT001", core.MapError(err).Code)
}

func TestPreviewBOMTree(t *testing.T) {
	h := newHarness(t, defaultOptions())
	seedTree(h)
	ctx := context.Background()
	id := h.upload(t, treeCSV)

	preview, err := h.svc.PreviewBOMTree(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "ASM-1", preview.Tree)
	assert.Equal(t, "ASM-1", preview.Root.ItemCode)
	assert.Equal(t, "Nos", preview.RootUOM)
	assert.Len(t, preview.Placements, 4)
	assert.Equal(t, "Created BOM tree ASM-1. Items: 4, Skipped: 0, Errors: 0.", preview.Summary)

	assert.Empty(t, h.store.TreeNames(), "preview stores nothing")
	_, ok, err := h.svc.LatestBOM(ctx, "ASM-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateRequest(t *testing.T) {
	h := newHarness(t, defaultOptions())
	ctx := context.Background()

	req, err := h.svc.CreateRequest(ctx, `C:\exports\Parts.CSV`, []byte("Number\nA\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "Parts.CSV", req.FileName)
	assert.Equal(t, req.ID+"/Parts.CSV", req.FileRef)
	assert.False(t, req.CreatedAt.IsZero())

	data, err := h.files.Get(ctx, req.FileRef)
	require.NoError(t, err)
	assert.Equal(t, "Number\nA\n", string(data))

	stored, err := h.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.FileRef, stored.FileRef)

	_, err = h.svc.CreateRequest(ctx, "parts.pdf", []byte("x"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)

	_, err = h.svc.CreateRequest(ctx, "parts.csv", nil)
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	st := memory.New()
	_, err := core.NewService(core.Deps{Catalog: st, Trees: st, Requests: st}, core.Options{})
	assert.Error(t, err)
}

func TestLimiterStatus(t *testing.T) {
	h := newHarness(t, core.Options{MaxConcurrent: 3})
	status := h.svc.LimiterStatus()
	assert.Equal(t, 3, status.MaxConcurrent)
	assert.Equal(t, 0, status.Active)
	require.NoError(t, h.svc.WaitForImports(context.Background()))
}
