package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ValueKind identifies which member of the Value union is populated
type ValueKind string

const (
	ValueText   ValueKind = "text"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "boolean"
	ValueDate   ValueKind = "date"
	ValueImage  ValueKind = "image"
)

// DateLayout is the canonical layout dates are stored and exported in
const DateLayout = "2006-01-02"

// Value is a typed product property value
type Value struct {
	Kind   ValueKind  `json:"kind"`
	Text   string     `json:"text,omitempty"`
	Number float64    `json:"number,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
}

func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Number: n} }

func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

func ImageValue(ref string) Value { return Value{Kind: ValueImage, Text: ref} }

func DateValue(t time.Time) Value {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Value{Kind: ValueDate, Date: &d}
}

// String renders the value the way it is matched and exported as text.
// Numbers never carry a trailing ".0".
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueDate:
		if v.Date == nil {
			return ""
		}
		return v.Date.Format(DateLayout)
	default:
		return v.Text
	}
}

// IsZero reports whether the value carries nothing usable
func (v Value) IsZero() bool {
	switch v.Kind {
	case "":
		return true
	case ValueText, ValueImage:
		return v.Text == ""
	case ValueDate:
		return v.Date == nil
	}
	return false
}

// Equal compares two values by kind and payload
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueNumber:
		return v.Number == o.Number
	case ValueBool:
		return v.Bool == o.Bool
	case ValueDate:
		if v.Date == nil || o.Date == nil {
			return v.Date == o.Date
		}
		return v.Date.Equal(*o.Date)
	default:
		return v.Text == o.Text
	}
}

// Properties is the typed property bag of a product record
type Properties map[string]Value

// Merge overwrites every key present in incoming and reports whether anything changed.
// Keys absent from incoming keep their stored value.
func (p Properties) Merge(incoming Properties) bool {
	changed := false
	for name, v := range incoming {
		if cur, ok := p[name]; ok && cur.Equal(v) {
			continue
		}
		p[name] = v
		changed = true
	}
	return changed
}

func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		if v.Date != nil {
			d := *v.Date
			v.Date = &d
		}
		out[k] = v
	}
	return out
}

func (p Properties) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Properties) Scan(value interface{}) error {
	if value == nil {
		*p = make(Properties)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported properties column type %T", value)
	}
	out := make(Properties)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

func (Properties) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

func jsonColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}
