package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// parseCSV reads a CSV file. Rows may have differing lengths and bare
// quotes are tolerated, matching what PLM tools export.
func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(WrapForStreaming(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
