package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// InstructionsSheet is skipped when picking the data sheet
const InstructionsSheet = "Instructions"

func parseXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheetName := sheets[0]
	for _, s := range sheets {
		if !strings.EqualFold(s, InstructionsSheet) {
			sheetName = s
			break
		}
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	raw := make([]Row, 0, len(rows))
	for i, values := range rows {
		rowNum := i + 1
		cells := make([]Cell, len(values))
		for j, v := range values {
			cells[j] = xlsxCell(f, sheetName, j+1, rowNum, v)
		}
		raw = append(raw, Row{Number: rowNum, Cells: cells})
	}

	return build(sheetName, FormatXLSX, raw)
}

// xlsxCell keeps the stored cell type: numbers and booleans stay native,
// strings stay text even when they look numeric.
func xlsxCell(f *excelize.File, sheet string, col, row int, value string) Cell {
	if strings.TrimSpace(value) == "" {
		return Empty()
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Text(value)
	}
	cellType, err := f.GetCellType(sheet, name)
	if err != nil {
		return Text(value)
	}

	switch cellType {
	case excelize.CellTypeBool:
		b := value == "1" || strings.EqualFold(value, "true")
		return Bool(b)
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return Number(n)
		}
	}
	return Text(value)
}
