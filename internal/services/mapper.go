package services

import (
	"strings"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/models"
)

// Mapping binds spreadsheet columns to template fields
type Mapping struct {
	// Columns maps a column index to the template field it feeds
	Columns map[int]string
	// FieldColumn is the inverse of Columns
	FieldColumn map[string]int
	// Unmapped lists headers that match no template field; they pass through unused
	Unmapped []string
	// Missing lists template fields with no column in the file
	Missing []string
}

// ImportRow is one data row keyed by template field name
type ImportRow struct {
	Number int
	Cells  map[string]ingest.Cell
}

// MapFields matches headers to template field names. Matching is exact after
// trimming surrounding whitespace; the first of duplicate headers wins.
func MapFields(headers []string, tpl *models.Template) Mapping {
	m := Mapping{
		Columns:     make(map[int]string),
		FieldColumn: make(map[string]int),
		Unmapped:    []string{},
		Missing:     []string{},
	}

	known := make(map[string]bool)
	for _, name := range tpl.FieldNames() {
		known[name] = true
	}

	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, taken := m.FieldColumn[name]; known[name] && !taken {
			m.Columns[i] = name
			m.FieldColumn[name] = i
			continue
		}
		m.Unmapped = append(m.Unmapped, name)
	}

	for _, name := range tpl.FieldNames() {
		if _, ok := m.FieldColumn[name]; !ok {
			m.Missing = append(m.Missing, name)
		}
	}
	return m
}

// Has reports whether the field has a column in the file
func (m Mapping) Has(field string) bool {
	_, ok := m.FieldColumn[field]
	return ok
}

// Extract keys a row's mapped cells by field name
func (m Mapping) Extract(row ingest.Row) ImportRow {
	cells := make(map[string]ingest.Cell, len(m.Columns))
	for idx, field := range m.Columns {
		cells[field] = row.Cell(idx)
	}
	return ImportRow{Number: row.Number, Cells: cells}
}

// Get returns the cell for a field, or an empty cell when it is unmapped
func (r ImportRow) Get(field string) ingest.Cell {
	if c, ok := r.Cells[field]; ok {
		return c
	}
	return ingest.Empty()
}
