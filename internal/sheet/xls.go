package sheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// parseXLS reads a legacy BIFF workbook. The decoder panics on some
// malformed files, so panics are turned into errors.
func parseXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("read xls: malformed workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, nil
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
