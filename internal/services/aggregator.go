package services

import (
	"time"

	"catalog-import-service/internal/models"
)

// RowOutcome is the result of processing one spreadsheet row
type RowOutcome struct {
	Row      int
	Status   models.RowStatus
	RecordID string
	Error    *models.RowError
}

// ReportBuilder accumulates row outcomes in arrival order
type ReportBuilder struct {
	report models.ImportReport
}

func NewReportBuilder(runID, categoryID, fileName string, dryRun bool) *ReportBuilder {
	return &ReportBuilder{report: models.ImportReport{
		RunID:           runID,
		CategoryID:      categoryID,
		FileName:        fileName,
		DryRun:          dryRun,
		Errors:          []models.RowError{},
		UnmappedColumns: []string{},
		MissingColumns:  []string{},
		StartedAt:       time.Now().UTC(),
	}}
}

func (b *ReportBuilder) SetColumns(unmapped, missing []string) {
	b.report.UnmappedColumns = append([]string{}, unmapped...)
	b.report.MissingColumns = append([]string{}, missing...)
}

func (b *ReportBuilder) Add(o RowOutcome) {
	b.report.Total++
	switch o.Status {
	case models.RowCreated:
		b.report.Created++
		if o.RecordID != "" {
			b.report.CreatedIDs = append(b.report.CreatedIDs, o.RecordID)
		}
	case models.RowUpdated:
		b.report.Updated++
		if o.RecordID != "" {
			b.report.UpdatedIDs = append(b.report.UpdatedIDs, o.RecordID)
		}
	case models.RowSkipped:
		b.report.Skipped++
	default:
		b.report.Invalid++
	}
	if o.Error != nil {
		b.report.Errors = append(b.report.Errors, *o.Error)
	}
}

// Build returns a copy of the report; later Add calls do not affect it
func (b *ReportBuilder) Build() *models.ImportReport {
	r := b.report
	r.FinishedAt = time.Now().UTC()
	r.ProcessingMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()

	r.Errors = append([]models.RowError{}, b.report.Errors...)
	r.CreatedIDs = append([]string(nil), b.report.CreatedIDs...)
	r.UpdatedIDs = append([]string(nil), b.report.UpdatedIDs...)
	r.UnmappedColumns = append([]string{}, b.report.UnmappedColumns...)
	r.MissingColumns = append([]string{}, b.report.MissingColumns...)
	return &r
}

// FileOutcome is the result of processing one photo file
type FileOutcome struct {
	Result models.PhotoFileResult
	Stored bool
	Bytes  int64
	Links  int
}

// PhotoReportBuilder accumulates file outcomes in arrival order
type PhotoReportBuilder struct {
	report  models.PhotoReport
	records map[string]struct{}
	bytes   int64
}

func NewPhotoReportBuilder(runID, categoryID, mappingProperty string, mode models.PhotoMode) *PhotoReportBuilder {
	return &PhotoReportBuilder{
		report: models.PhotoReport{
			RunID:           runID,
			CategoryID:      categoryID,
			MappingProperty: mappingProperty,
			Mode:            mode,
			Files:           []models.PhotoFileResult{},
			StartedAt:       time.Now().UTC(),
		},
		records: make(map[string]struct{}),
	}
}

func (b *PhotoReportBuilder) Add(o FileOutcome) {
	b.report.Total++
	if o.Stored {
		b.report.Uploaded++
		b.bytes += o.Bytes
	}
	b.report.Linked += o.Links

	switch o.Result.Status {
	case models.PhotoUnmatched:
		b.report.Unmatched++
	case models.PhotoInvalid, models.PhotoFailed:
		b.report.Errors++
	case models.PhotoLinked:
		for _, id := range o.Result.RecordIDs {
			b.records[id] = struct{}{}
		}
	}

	res := o.Result
	res.RecordIDs = append([]string(nil), o.Result.RecordIDs...)
	b.report.Files = append(b.report.Files, res)
}

// BytesStored is the total size of the files written to storage
func (b *PhotoReportBuilder) BytesStored() int64 {
	return b.bytes
}

// Build returns a copy of the report; later Add calls do not affect it
func (b *PhotoReportBuilder) Build() *models.PhotoReport {
	r := b.report
	r.UniqueRecords = len(b.records)
	r.FinishedAt = time.Now().UTC()
	r.ProcessingMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	r.Files = append([]models.PhotoFileResult{}, b.report.Files...)
	return &r
}
