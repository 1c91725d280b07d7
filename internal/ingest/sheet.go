package ingest

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrEmptyFile      = errors.New("file has no header row and data rows")
	ErrUnreadableFile = errors.New("file could not be read as a spreadsheet")
)

// Format is the detected spreadsheet encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// CellKind tells which scalar a cell holds
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellBool
)

// Cell is one spreadsheet value in its native scalar type
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
}

func Empty() Cell { return Cell{Kind: CellEmpty} }

func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Empty()
	}
	return Cell{Kind: CellText, Text: s}
}

func Number(n float64) Cell { return Cell{Kind: CellNumber, Number: n} }

func Bool(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// IsBlank reports whether the cell carries no value
func (c Cell) IsBlank() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// String renders the cell as trimmed text
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.Bool)
	case CellText:
		return strings.TrimSpace(c.Text)
	}
	return ""
}

// Row is a data row padded to header width
type Row struct {
	Number int
	Cells  []Cell
}

// IsBlank reports whether every cell in the row is blank
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Cell returns the cell at index i, or an empty cell when out of range
func (r Row) Cell(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Empty()
	}
	return r.Cells[i]
}

// Sheet is the ingested spreadsheet: headers plus data rows
type Sheet struct {
	Name    string
	Format  Format
	Headers []string
	Rows    []Row
}

// build turns raw rows into a sheet, taking the first non-empty row as headers.
// Rows wider than the header keep their extra cells; narrower rows are padded.
func build(name string, format Format, raw []Row) (*Sheet, error) {
	headerAt := -1
	for i, r := range raw {
		if !r.IsBlank() {
			headerAt = i
			break
		}
	}
	if headerAt < 0 || headerAt == len(raw)-1 {
		return nil, ErrEmptyFile
	}

	headerRow := raw[headerAt]
	headers := make([]string, len(headerRow.Cells))
	for i, c := range headerRow.Cells {
		h := c.String()
		if i == 0 {
			h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
		headers[i] = h
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	rows := make([]Row, 0, len(raw)-headerAt-1)
	for _, r := range raw[headerAt+1:] {
		for len(r.Cells) < len(headers) {
			r.Cells = append(r.Cells, Empty())
		}
		rows = append(rows, r)
	}

	return &Sheet{Name: name, Format: format, Headers: headers, Rows: rows}, nil
}
