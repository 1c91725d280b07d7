package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultIdentityField is the field deciding create vs update during import
const DefaultIdentityField = "sku_internal"

// FieldKind is the declared type of a template field
type FieldKind string

const (
	FieldText    FieldKind = "text"
	FieldNumber  FieldKind = "number"
	FieldSelect  FieldKind = "select"
	FieldBoolean FieldKind = "boolean"
	FieldDate    FieldKind = "date"
	FieldImage   FieldKind = "image"
)

func (k FieldKind) Valid() bool {
	switch k {
	case FieldText, FieldNumber, FieldSelect, FieldBoolean, FieldDate, FieldImage:
		return true
	}
	return false
}

var ErrInvalidTemplate = errors.New("invalid template")

// ImportField describes one typed column of a category template
type ImportField struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Kind        FieldKind `json:"kind"`
	IsRequired  bool      `json:"isRequired"`
	Options     []string  `json:"options,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Template is the per-category import schema
type Template struct {
	ID               uuid.UUID                        `json:"id" gorm:"type:uuid;primaryKey"`
	CategoryID       string                           `json:"categoryId" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name             string                           `json:"name"`
	IdentityField    string                           `json:"identityField" gorm:"type:varchar(128)"`
	RequiredFields   datatypes.JSONSlice[string]      `json:"requiredFields"`
	CalculatorFields datatypes.JSONSlice[string]      `json:"calculatorFields"`
	ExportFields     datatypes.JSONSlice[string]      `json:"exportFields"`
	Fields           datatypes.JSONSlice[ImportField] `json:"fields"`
	IsActive         bool                             `json:"isActive"`
	CreatedAt        time.Time                        `json:"createdAt"`
	UpdatedAt        time.Time                        `json:"updatedAt"`
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Template model
func (Template) TableName() string {
	return "import_templates"
}

// Identity returns the identity field name, falling back to the default
func (t *Template) Identity() string {
	if strings.TrimSpace(t.IdentityField) == "" {
		return DefaultIdentityField
	}
	return t.IdentityField
}

// Field resolves the typed declaration of a known field.
// Fields only listed in the name lists are text, except calculator inputs
// which are numeric.
func (t *Template) Field(name string) (ImportField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			if f.Kind == "" {
				f.Kind = FieldText
			}
			return f, true
		}
	}
	if contains(t.CalculatorFields, name) {
		return ImportField{Name: name, DisplayName: name, Kind: FieldNumber, IsRequired: contains(t.RequiredFields, name)}, true
	}
	if contains(t.RequiredFields, name) {
		return ImportField{Name: name, DisplayName: name, Kind: FieldText, IsRequired: true}, true
	}
	if contains(t.ExportFields, name) || name == t.Identity() {
		return ImportField{Name: name, DisplayName: name, Kind: FieldText}, true
	}
	return ImportField{}, false
}

// FieldNames lists every field the template knows, identity first,
// then typed fields, then the remaining names from the field lists.
func (t *Template) FieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}
	add(t.Identity())
	for _, f := range t.Fields {
		add(f.Name)
	}
	for _, n := range t.RequiredFields {
		add(n)
	}
	for _, n := range t.CalculatorFields {
		add(n)
	}
	for _, n := range t.ExportFields {
		add(n)
	}
	return names
}

// IsRequired reports whether the field must be present on create
func (t *Template) IsRequired(name string) bool {
	if contains(t.RequiredFields, name) {
		return true
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.IsRequired
		}
	}
	return false
}

// Validate checks the template invariants before it is stored
func (t *Template) Validate() error {
	if strings.TrimSpace(t.CategoryID) == "" {
		return fmt.Errorf("%w: categoryId is required", ErrInvalidTemplate)
	}
	if t.IsActive && len(t.RequiredFields) == 0 {
		return fmt.Errorf("%w: an active template needs at least one required field", ErrInvalidTemplate)
	}
	names := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: field name is empty", ErrInvalidTemplate)
		}
		if names[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidTemplate, f.Name)
		}
		names[f.Name] = true
		if f.Kind != "" && !f.Kind.Valid() {
			return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalidTemplate, f.Name, f.Kind)
		}
		if f.Kind == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("%w: select field %q has no options", ErrInvalidTemplate, f.Name)
		}
	}
	return nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// RequiredNames lists the fields that must be present and non-blank on create
func (t *Template) RequiredNames() []string {
	var out []string
	for _, n := range t.FieldNames() {
		if t.IsRequired(n) {
			out = append(out, n)
		}
	}
	return out
}
