package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/models"
)

// CoercionError reports a cell that does not fit its field kind
type CoercionError struct {
	Field  string
	Value  string
	Reason string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("field %q: %s (got %q)", e.Field, e.Reason, e.Value)
}

var dateLayouts = []string{
	models.DateLayout,
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

var (
	trueWords  = map[string]bool{"true": true, "yes": true, "y": true, "1": true, "да": true, "+": true}
	falseWords = map[string]bool{"false": true, "no": true, "n": true, "0": true, "нет": true, "-": true}
)

// fold applies full Unicode case folding. A Caser keeps state, so one is
// built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Coerce converts a non-blank cell to the field's declared kind
func Coerce(field models.ImportField, cell ingest.Cell) (models.Value, error) {
	raw := cell.String()
	fail := func(reason string) (models.Value, error) {
		return models.Value{}, &CoercionError{Field: field.Name, Value: raw, Reason: reason}
	}

	switch field.Kind {
	case models.FieldNumber:
		switch cell.Kind {
		case ingest.CellNumber:
			return models.NumberValue(cell.Number), nil
		case ingest.CellText:
			n, ok := parseNumber(raw)
			if !ok {
				return fail("not a number")
			}
			return models.NumberValue(n), nil
		}
		return fail("not a number")

	case models.FieldBoolean:
		switch cell.Kind {
		case ingest.CellBool:
			return models.BoolValue(cell.Bool), nil
		case ingest.CellNumber:
			if cell.Number == 0 || cell.Number == 1 {
				return models.BoolValue(cell.Number == 1), nil
			}
		case ingest.CellText:
			w := fold(raw)
			if trueWords[w] {
				return models.BoolValue(true), nil
			}
			if falseWords[w] {
				return models.BoolValue(false), nil
			}
		}
		return fail("not a boolean")

	case models.FieldDate:
		if cell.Kind == ingest.CellNumber {
			return excelSerialDate(field, cell.Number, raw)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return models.DateValue(t), nil
			}
		}
		if n, ok := parseNumber(raw); ok {
			return excelSerialDate(field, n, raw)
		}
		return fail("not a date")

	case models.FieldSelect:
		want := fold(raw)
		for _, opt := range field.Options {
			if fold(strings.TrimSpace(opt)) == want {
				return models.TextValue(opt), nil
			}
		}
		return fail(fmt.Sprintf("not one of %s", strings.Join(field.Options, ", ")))

	case models.FieldImage:
		return models.ImageValue(raw), nil
	}

	return models.TextValue(raw), nil
}

func excelSerialDate(field models.ImportField, serial float64, raw string) (models.Value, error) {
	if serial <= 0 {
		return models.Value{}, &CoercionError{Field: field.Name, Value: raw, Reason: "not a date"}
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return models.Value{}, &CoercionError{Field: field.Name, Value: raw, Reason: "not a date"}
	}
	return models.DateValue(t), nil
}

// parseNumber accepts spaces or NBSP as thousands separators and a comma
// as the decimal mark. When both '.' and ',' appear the later one is the
// decimal mark.
func parseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
