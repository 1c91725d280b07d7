package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/metrics"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// EventPublisher announces finished runs
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, report *models.ImportReport, status models.ImportStatus) error
	PublishPhotosCompleted(ctx context.Context, report *models.PhotoReport, status models.ImportStatus) error
}

// ImportRequest is one spreadsheet upload into a category
type ImportRequest struct {
	CategoryID  string
	FileName    string
	ContentType string
	Data        []byte
	DryRun      bool
}

// ImportService validates spreadsheet rows and upserts product records
type ImportService struct {
	templates *TemplateRegistry
	products  repository.ProductRepositoryInterface
	history   repository.HistoryRepositoryInterface
	publisher EventPublisher
	logger    *logrus.Entry
}

// NewImportService creates an ImportService. history and publisher may be nil.
func NewImportService(
	templates *TemplateRegistry,
	products repository.ProductRepositoryInterface,
	history repository.HistoryRepositoryInterface,
	publisher EventPublisher,
	logger *logrus.Logger,
) *ImportService {
	return &ImportService{
		templates: templates,
		products:  products,
		history:   history,
		publisher: publisher,
		logger:    logger.WithField("component", "import"),
	}
}

// GenerateSKU returns a new unique internal SKU
func GenerateSKU() string {
	return "SKU-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Import runs one spreadsheet through mapping, validation and upsert.
// Rows are applied one at a time in file order; each row is its own unit.
// On cancellation the report built so far is returned together with ctx.Err().
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*models.ImportReport, error) {
	tpl, err := s.templates.Resolve(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	sheet, err := ingest.Parse(req.Data, req.FileName, req.ContentType)
	if err != nil {
		return nil, err
	}

	groups, err := s.products.ListPhotoGroups(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo groups: %w", err)
	}
	galleries := sharedGalleries{groups: groups, identity: tpl.Identity()}

	mapping := MapFields(sheet.Headers, tpl)
	builder := NewReportBuilder(uuid.NewString(), req.CategoryID, req.FileName, req.DryRun)
	builder.SetColumns(mapping.Unmapped, mapping.Missing)

	log := s.logger.WithFields(logrus.Fields{
		"category_id": req.CategoryID,
		"file":        req.FileName,
		"rows":        len(sheet.Rows),
		"dry_run":     req.DryRun,
	})
	log.Info("Import started")

	for _, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			report := builder.Build()
			s.finish(context.WithoutCancel(ctx), report, models.ImportStatusCancelled)
			return report, err
		}
		builder.Add(s.processRow(ctx, tpl, mapping, galleries, row, req))
	}

	report := builder.Build()
	s.finish(ctx, report, models.StatusFor(report.Created+report.Updated, report.Invalid))
	return report, nil
}

func (s *ImportService) processRow(ctx context.Context, tpl *models.Template, mapping Mapping, galleries sharedGalleries, row ingest.Row, req ImportRequest) RowOutcome {
	if row.IsBlank() {
		return RowOutcome{Row: row.Number, Status: models.RowSkipped}
	}

	ir := mapping.Extract(row)
	sku := ir.Get(tpl.Identity()).String()
	if sku == "" {
		return s.createRow(ctx, tpl, galleries, ir, req)
	}
	return s.updateRow(ctx, tpl, galleries, ir, sku, req)
}

func (s *ImportService) createRow(ctx context.Context, tpl *models.Template, galleries sharedGalleries, ir ImportRow, req ImportRequest) RowOutcome {
	identity := tpl.Identity()

	var missing []string
	for _, name := range tpl.RequiredNames() {
		if name == identity {
			continue
		}
		if ir.Get(name).IsBlank() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		messages := make([]string, len(missing))
		for i, name := range missing {
			messages[i] = fmt.Sprintf("required field %q is missing or blank", name)
		}
		return invalidRow(ir.Number, models.RowErrMissingFields, missing, messages)
	}

	props, rowErr := coerceRow(tpl, ir)
	if rowErr != nil {
		return RowOutcome{Row: ir.Number, Status: models.RowInvalid, Error: rowErr}
	}

	sku := GenerateSKU()
	props[identity] = models.TextValue(sku)
	record := &models.ProductRecord{
		ID:          uuid.New(),
		CategoryID:  req.CategoryID,
		InternalSKU: sku,
		Properties:  props,
		Photos:      models.Gallery{},
	}
	record.PhotoGroupID = galleries.resolve(record)

	if !req.DryRun {
		if err := s.products.Create(ctx, record); err != nil {
			s.logger.WithError(err).WithField("row", ir.Number).Warn("Failed to create record")
			return storageFailed(ir.Number, err)
		}
	}
	return RowOutcome{Row: ir.Number, Status: models.RowCreated, RecordID: record.ID.String()}
}

func (s *ImportService) updateRow(ctx context.Context, tpl *models.Template, galleries sharedGalleries, ir ImportRow, sku string, req ImportRequest) RowOutcome {
	identity := tpl.Identity()

	record, err := s.products.FindByIdentityKey(ctx, req.CategoryID, sku)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalidRow(ir.Number, models.RowErrReferenceNotFound, []string{identity},
				[]string{fmt.Sprintf("no record with %s %q in this category", identity, sku)})
		}
		s.logger.WithError(err).WithField("row", ir.Number).Warn("Failed to look up record")
		return storageFailed(ir.Number, err)
	}

	props, rowErr := coerceRow(tpl, ir)
	if rowErr != nil {
		return RowOutcome{Row: ir.Number, Status: models.RowInvalid, Error: rowErr}
	}

	merged := record.Properties.Clone()
	changed := merged.Merge(props)
	record.Properties = merged

	// a changed mapping value moves the record to another shared gallery, or out of one
	if groupID := galleries.resolve(record); !sameGroup(groupID, record.PhotoGroupID) {
		record.PhotoGroupID = groupID
		changed = true
	}

	if changed && !req.DryRun {
		if err := s.products.Update(ctx, record); err != nil {
			s.logger.WithError(err).WithField("row", ir.Number).Warn("Failed to update record")
			return storageFailed(ir.Number, err)
		}
	}
	return RowOutcome{Row: ir.Number, Status: models.RowUpdated, RecordID: record.ID.String()}
}

// sharedGalleries is the category's photo groups at the start of a run. A record
// belongs to the group whose key equals its current normalized mapping value.
type sharedGalleries struct {
	groups   []models.PhotoGroup
	identity string
}

// resolve keeps the record's current group while it still matches, otherwise
// picks the oldest matching group, or none
func (g sharedGalleries) resolve(rec *models.ProductRecord) *uuid.UUID {
	matches := func(group models.PhotoGroup) bool {
		return group.Key != "" && NormalizeKey(mappingValue(*rec, group.MappingProperty, g.identity)) == group.Key
	}

	if rec.PhotoGroupID != nil {
		for _, group := range g.groups {
			if group.ID == *rec.PhotoGroupID && matches(group) {
				id := group.ID
				return &id
			}
		}
	}
	for _, group := range g.groups {
		if matches(group) {
			id := group.ID
			return &id
		}
	}
	return nil
}

func sameGroup(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// coerceRow converts every non-blank mapped cell except the identity field.
// Blank cells are left out so they never overwrite stored values.
func coerceRow(tpl *models.Template, ir ImportRow) (models.Properties, *models.RowError) {
	identity := tpl.Identity()
	props := make(models.Properties)
	var fields, messages []string

	for _, name := range tpl.FieldNames() {
		if name == identity {
			continue
		}
		cell, ok := ir.Cells[name]
		if !ok || cell.IsBlank() {
			continue
		}
		field, _ := tpl.Field(name)
		v, err := Coerce(field, cell)
		if err != nil {
			fields = append(fields, name)
			messages = append(messages, err.Error())
			continue
		}
		props[name] = v
	}

	if len(fields) > 0 {
		return nil, &models.RowError{Row: ir.Number, Code: models.RowErrCoercionFailed, Fields: fields, Messages: messages}
	}
	return props, nil
}

func invalidRow(row int, code string, fields, messages []string) RowOutcome {
	return RowOutcome{
		Row:    row,
		Status: models.RowInvalid,
		Error:  &models.RowError{Row: row, Code: code, Fields: fields, Messages: messages},
	}
}

func storageFailed(row int, err error) RowOutcome {
	return invalidRow(row, models.RowErrStorageFailed, nil, []string{err.Error()})
}

// finish records the run: metrics and logs always, history and events for real runs
func (s *ImportService) finish(ctx context.Context, report *models.ImportReport, status models.ImportStatus) {
	metrics.RecordImport(report, status)

	s.logger.WithFields(logrus.Fields{
		"run_id":      report.RunID,
		"category_id": report.CategoryID,
		"status":      status,
		"total":       report.Total,
		"created":     report.Created,
		"updated":     report.Updated,
		"invalid":     report.Invalid,
		"skipped":     report.Skipped,
		"duration_ms": report.ProcessingMs,
	}).Info("Import finished")

	if report.DryRun {
		return
	}

	if s.history != nil {
		data, err := json.Marshal(report)
		if err == nil {
			entry := &models.ImportHistory{
				RunID:      report.RunID,
				Kind:       models.ImportKindProducts,
				CategoryID: report.CategoryID,
				FileName:   report.FileName,
				Total:      report.Total,
				Succeeded:  report.Created + report.Updated,
				Failed:     report.Invalid,
				Status:     status,
				Report:     datatypes.JSON(data),
			}
			err = s.history.Create(ctx, entry)
		}
		if err != nil {
			s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to save import history")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishImportCompleted(ctx, report, status); err != nil {
			s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to publish import event")
		}
	}
}
