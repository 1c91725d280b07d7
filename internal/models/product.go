package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PhotoMode selects how matched photos are owned
type PhotoMode string

const (
	PhotoModePerProduct     PhotoMode = "per-product"
	PhotoModePerSharedValue PhotoMode = "per-shared-value"
)

func (m PhotoMode) Valid() bool {
	return m == PhotoModePerProduct || m == PhotoModePerSharedValue
}

// PhotoAsset is one stored photo at a gallery position
type PhotoAsset struct {
	Index       int       `json:"index"`
	StorageKey  string    `json:"storageKey"`
	URL         string    `json:"url"`
	FileName    string    `json:"fileName"`
	MatchedKey  string    `json:"matchedKey"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Gallery is an ordered photo list; index 0 is the primary photo
type Gallery []PhotoAsset

// Set places the asset at its index, replacing any entry already there,
// and keeps the gallery sorted by index.
func (g Gallery) Set(asset PhotoAsset) Gallery {
	out := make(Gallery, 0, len(g)+1)
	for _, p := range g {
		if p.Index != asset.Index {
			out = append(out, p)
		}
	}
	out = append(out, asset)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Primary returns the index 0 photo, if any
func (g Gallery) Primary() (PhotoAsset, bool) {
	for _, p := range g {
		if p.Index == 0 {
			return p, true
		}
	}
	return PhotoAsset{}, false
}

func (g Gallery) Value() (driver.Value, error) {
	if g == nil {
		return "[]", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (g *Gallery) Scan(value interface{}) error {
	if value == nil {
		*g = Gallery{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported gallery column type %T", value)
	}
	out := Gallery{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*g = out
	return nil
}

func (Gallery) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// ProductRecord is a catalog item inside a category
type ProductRecord struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	CategoryID   string      `json:"categoryId" gorm:"type:varchar(64);not null;index"`
	InternalSKU  string      `json:"internalSku" gorm:"type:varchar(64);not null;uniqueIndex"`
	Properties   Properties  `json:"properties"`
	Photos       Gallery     `json:"photos"`
	PhotoGroupID *uuid.UUID  `json:"photoGroupId,omitempty" gorm:"type:uuid;index"`
	PhotoGroup   *PhotoGroup `json:"photoGroup,omitempty" gorm:"foreignKey:PhotoGroupID"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (p *ProductRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Properties == nil {
		p.Properties = make(Properties)
	}
	if p.Photos == nil {
		p.Photos = Gallery{}
	}
	return nil
}

// PhotoGroup is a gallery shared by every record whose mapping property
// normalizes to the same key
type PhotoGroup struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CategoryID      string    `json:"categoryId" gorm:"type:varchar(64);not null;uniqueIndex:idx_photo_group_key"`
	MappingProperty string    `json:"mappingProperty" gorm:"type:varchar(128);not null;uniqueIndex:idx_photo_group_key"`
	Key             string    `json:"key" gorm:"column:group_key;type:varchar(255);not null;uniqueIndex:idx_photo_group_key"`
	Photos          Gallery   `json:"photos"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (g *PhotoGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Photos == nil {
		g.Photos = Gallery{}
	}
	return nil
}

// TableName returns the table name for the ProductRecord model
func (ProductRecord) TableName() string {
	return "catalog_products"
}

// TableName returns the table name for the PhotoGroup model
func (PhotoGroup) TableName() string {
	return "photo_groups"
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
