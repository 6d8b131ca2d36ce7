// Package sheet reads parts-list attachments (CSV, XLSX, XLS) into string
// rows, header row first. Only the first worksheet of a workbook is read.
package sheet

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bomimport/internal/core"
)

// DefaultMaxFileSize bounds attachments when no size is configured.
const DefaultMaxFileSize = 50 << 20

// Getter fetches stored attachments by key.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Reader implements core.RowSource over an attachment store.
type Reader struct {
	files   Getter
	maxSize int64
}

var _ core.RowSource = (*Reader)(nil)

// NewReader reads attachments from files, refusing any larger than maxSize bytes.
func NewReader(files Getter, maxSize int64) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Reader{files: files, maxSize: maxSize}
}

// Rows loads fileRef and decodes it by extension.
func (r *Reader) Rows(ctx context.Context, fileRef string) ([][]string, error) {
	ext, err := core.Extension(fileRef)
	if err != nil {
		return nil, err
	}

	data, err := r.files.Get(ctx, fileRef)
	if err != nil {
		return nil, fmt.Errorf("load attachment %s: %w", fileRef, err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds the %d byte limit", len(data), r.maxSize)
	}

	return Parse(ext, data)
}

// Parse decodes data in the given format ("csv", "xlsx" or "xls"). Every
// cell goes through core.CleanCell.
func Parse(ext string, data []byte) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext {
	case "csv":
		rows, err = parseCSV(data)
	case "xlsx":
		rows, err = parseXLSX(data)
	case "xls":
		rows, err = parseXLS(data)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFile, ext)
	}
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		for j := range row {
			row[j] = core.CleanCell(row[j])
		}
	}
	return rows, nil
}
