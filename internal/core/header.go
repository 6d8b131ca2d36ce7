package core

import "strings"

// headerAliases maps scrubbed header text to canonical fields.
var headerAliases = map[string]Field{
	"number":          FieldItemCode,
	"item_code":       FieldItemCode,
	"code":            FieldItemCode,
	"name":            FieldItemName,
	"item_name":       FieldItemName,
	"description":     FieldDescription,
	"gst_hsn_code":    FieldHSNCode,
	"gst_hsn":         FieldHSNCode,
	"hsn_code":        FieldHSNCode,
	"material":        FieldMaterial,
	"length":          FieldLength,
	"width":           FieldWidth,
	"height":          FieldHeight,
	"diameter":        FieldDiameter,
	"thickness":       FieldThickness,
	"weight":          FieldWeight,
	"part_type":       FieldItemGroup,
	"parttype":        FieldItemGroup,
	"item_group":      FieldItemGroup,
	"uom":             FieldStockUOM,
	"stock_uom":       FieldStockUOM,
	"structure_level": FieldStructureLevel,
	"level":           FieldStructureLevel,
	"structurelevel":  FieldStructureLevel,
	"qty":             FieldQty,
	"quantity":        FieldQty,
}

// Scrub lower-snake-cases a header: "Structure Level" becomes
// "structure_level", "Part-Type" becomes "part_type".
func Scrub(header string) string {
	s := strings.ToLower(CleanCell(header))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// BuildHeaderMap maps each recognized header to its canonical field.
// When two columns alias the same field, both are kept; the later column
// wins during extraction.
func BuildHeaderMap(headers []string) HeaderMap {
	m := make(HeaderMap, len(headers))
	for i, h := range headers {
		if f, ok := headerAliases[Scrub(h)]; ok {
			m[i] = f
		}
	}
	return m
}

// ExtractRow pulls the mapped fields out of row. Cells beyond the end of a
// short row are left absent rather than set to "".
func ExtractRow(row []string, headers HeaderMap) RowData {
	data := make(RowData, len(headers))
	for i := 0; i < len(row); i++ {
		f, ok := headers[i]
		if !ok {
			continue
		}
		data[f] = strings.TrimSpace(row[i])
	}
	return data
}

// IsBlankRow reports whether every cell of row is empty after trimming.
func IsBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CleanCell trims whitespace, a UTF-8 BOM, and an Excel text-formula
// wrapper (="...") from a cell.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
