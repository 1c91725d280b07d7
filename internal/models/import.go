package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Row error codes
const (
	RowErrMissingFields     = "missing_fields"
	RowErrCoercionFailed    = "coercion_failed"
	RowErrReferenceNotFound = "reference_not_found"
	RowErrStorageFailed     = "storage_failed"
)

// RowStatus is the outcome of one imported row
type RowStatus string

const (
	RowCreated RowStatus = "created"
	RowUpdated RowStatus = "updated"
	RowInvalid RowStatus = "invalid"
	RowSkipped RowStatus = "skipped"
)

// RowError describes why a single row was not applied
type RowError struct {
	Row      int      `json:"row"`
	Code     string   `json:"code"`
	Fields   []string `json:"fields,omitempty"`
	Messages []string `json:"messages"`
}

// ImportReport is the result of one spreadsheet import run
type ImportReport struct {
	RunID           string     `json:"runId"`
	CategoryID      string     `json:"categoryId"`
	FileName        string     `json:"fileName"`
	DryRun          bool       `json:"dryRun"`
	Total           int        `json:"total"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	Invalid         int        `json:"invalid"`
	Skipped         int        `json:"skipped"`
	Errors          []RowError `json:"errors"`
	CreatedIDs      []string   `json:"createdIds,omitempty"`
	UpdatedIDs      []string   `json:"updatedIds,omitempty"`
	UnmappedColumns []string   `json:"unmappedColumns"`
	MissingColumns  []string   `json:"missingColumns"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      time.Time  `json:"finishedAt"`
	ProcessingMs    int64      `json:"processingMs"`
}

// Photo file statuses
const (
	PhotoLinked    = "linked"
	PhotoUnmatched = "unmatched"
	PhotoInvalid   = "invalid"
	PhotoFailed    = "failed"
)

// PhotoFileResult is the per-file detail of a photo run
type PhotoFileResult struct {
	FileName  string   `json:"fileName"`
	Key       string   `json:"key"`
	Index     int      `json:"index"`
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	URL       string   `json:"url,omitempty"`
	RecordIDs []string `json:"recordIds,omitempty"`
}

// PhotoReport is the result of one photo upload run
type PhotoReport struct {
	RunID           string            `json:"runId"`
	CategoryID      string            `json:"categoryId"`
	MappingProperty string            `json:"mappingProperty"`
	Mode            PhotoMode         `json:"mode"`
	Total           int               `json:"total"`
	Uploaded        int               `json:"uploaded"`
	Linked          int               `json:"linked"`
	Errors          int               `json:"errors"`
	Unmatched       int               `json:"unmatched"`
	UniqueRecords   int               `json:"uniqueRecords"`
	Files           []PhotoFileResult `json:"files"`
	StartedAt       time.Time         `json:"startedAt"`
	FinishedAt      time.Time         `json:"finishedAt"`
	ProcessingMs    int64             `json:"processingMs"`
}

// ClearPhotosResult is returned when every photo link of a category is removed
type ClearPhotosResult struct {
	CategoryID     string `json:"categoryId"`
	CleanedRecords int64  `json:"cleanedRecords"`
	RemovedPhotos  int    `json:"removedPhotos"`
	RemovedGroups  int64  `json:"removedGroups"`
}

// ImportKind distinguishes history entries
type ImportKind string

const (
	ImportKindProducts ImportKind = "products"
	ImportKindPhotos   ImportKind = "photos"
)

// ImportStatus summarizes how a run ended
type ImportStatus string

const (
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusPartial   ImportStatus = "partial"
	ImportStatusFailed    ImportStatus = "failed"
	ImportStatusCancelled ImportStatus = "cancelled"
)

// ImportHistory is one persisted run summary
type ImportHistory struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	RunID      string         `json:"runId" gorm:"type:varchar(64);index"`
	Kind       ImportKind     `json:"kind" gorm:"type:varchar(16);not null"`
	CategoryID string         `json:"categoryId" gorm:"type:varchar(64);not null;index"`
	FileName   string         `json:"fileName"`
	DryRun     bool           `json:"dryRun"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Status     ImportStatus   `json:"status" gorm:"type:varchar(16)"`
	Report     datatypes.JSON `json:"report"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"index"`
}

func (h *ImportHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ImportHistory model
func (ImportHistory) TableName() string {
	return "import_history"
}

// StatusFor derives a run status from its success and failure counts
func StatusFor(succeeded, failed int) ImportStatus {
	switch {
	case failed == 0:
		return ImportStatusCompleted
	case succeeded == 0:
		return ImportStatusFailed
	default:
		return ImportStatusPartial
	}
}
