package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"catalog-import-service/internal/metrics"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/storage"
)

var (
	ErrInvalidPhotoRequest = errors.New("invalid photo upload request")
	ErrGalleryGap          = errors.New("gallery index leaves a gap")
)

const DefaultPhotoWorkers = 4

// PhotoFile is one uploaded photo
type PhotoFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// PhotoUploadRequest is one batch of photos for a category
type PhotoUploadRequest struct {
	CategoryID      string
	MappingProperty string
	Mode            models.PhotoMode
	// SuffixParsing treats a trailing "_<digits>" as the gallery index.
	// Categories whose keys legitimately end that way turn it off.
	SuffixParsing bool
	Files         []PhotoFile
}

type PhotoServiceConfig struct {
	Workers       int
	MaxPhotoBytes int64
	IdentityField string
}

// PhotoService matches photo files to records and stores them
type PhotoService struct {
	products  repository.ProductRepositoryInterface
	storage   storage.PhotoStorage
	history   repository.HistoryRepositoryInterface
	publisher EventPublisher
	cfg       PhotoServiceConfig
	logger    *logrus.Entry
}

// NewPhotoService creates a PhotoService. history and publisher may be nil.
func NewPhotoService(
	products repository.ProductRepositoryInterface,
	store storage.PhotoStorage,
	history repository.HistoryRepositoryInterface,
	publisher EventPublisher,
	cfg PhotoServiceConfig,
	logger *logrus.Logger,
) *PhotoService {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPhotoWorkers
	}
	if cfg.IdentityField == "" {
		cfg.IdentityField = models.DefaultIdentityField
	}
	return &PhotoService{
		products:  products,
		storage:   store,
		history:   history,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.WithField("component", "photos"),
	}
}

type photoPlan struct {
	file    PhotoFile
	key     PhotoKey
	matches []models.ProductRecord
	err     error
}

func (p photoPlan) recordIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.matches))
	for i, rec := range p.matches {
		ids[i] = rec.ID
	}
	return ids
}

type photoUpload struct {
	asset  *models.PhotoAsset
	status string
	err    error
}

// Upload matches every file against a snapshot of the category's records,
// stores matched files in parallel and then applies assignments one file at a
// time in request order, so the later file wins when two target the same slot.
func (s *PhotoService) Upload(ctx context.Context, req PhotoUploadRequest) (*models.PhotoReport, error) {
	req.MappingProperty = strings.TrimSpace(req.MappingProperty)
	if req.Mode == "" {
		req.Mode = models.PhotoModePerProduct
	}
	switch {
	case req.CategoryID == "":
		return nil, fmt.Errorf("%w: category is required", ErrInvalidPhotoRequest)
	case req.MappingProperty == "":
		return nil, fmt.Errorf("%w: mapping property is required", ErrInvalidPhotoRequest)
	case !req.Mode.Valid():
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidPhotoRequest, req.Mode)
	case len(req.Files) == 0:
		return nil, fmt.Errorf("%w: no files", ErrInvalidPhotoRequest)
	}

	records, err := s.products.ListByCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for category %s: %w", req.CategoryID, err)
	}
	index := NewMatchIndex(records, req.MappingProperty, s.cfg.IdentityField)

	runID := uuid.NewString()
	builder := NewPhotoReportBuilder(runID, req.CategoryID, req.MappingProperty, req.Mode)
	s.logger.WithFields(logrus.Fields{
		"run_id":           runID,
		"category_id":      req.CategoryID,
		"mapping_property": req.MappingProperty,
		"mode":             req.Mode,
		"files":            len(req.Files),
		"records":          len(records),
		"keys":             index.Keys(),
	}).Info("Photo upload started")

	plans := make([]photoPlan, len(req.Files))
	for i, f := range req.Files {
		key := ParsePhotoKey(f.Name, req.SuffixParsing)
		plans[i] = photoPlan{file: f, key: key, matches: index.FindByMappingPropertyNormalized(key.Normalized)}
	}
	if err := s.rejectGaps(ctx, req, plans); err != nil {
		return nil, fmt.Errorf("failed to load photo groups for category %s: %w", req.CategoryID, err)
	}

	uploads := s.storeMatched(ctx, req.CategoryID, plans)

	for i, plan := range plans {
		if err := ctx.Err(); err != nil {
			s.discard(context.WithoutCancel(ctx), uploads[i:])
			report := builder.Build()
			s.finish(context.WithoutCancel(ctx), report, models.ImportStatusCancelled, builder.BytesStored())
			return report, err
		}
		builder.Add(s.assign(ctx, req, plan, uploads[i]))
	}

	report := builder.Build()
	s.finish(ctx, report, models.StatusFor(report.Total-report.Errors-report.Unmatched, report.Errors), builder.BytesStored())
	return report, nil
}

// storeMatched validates and writes every matched file using a bounded worker pool.
// Results are indexed by file position.
func (s *PhotoService) storeMatched(ctx context.Context, categoryID string, plans []photoPlan) []photoUpload {
	results := make([]photoUpload, len(plans))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i := range plans {
		i := i
		if len(plans[i].matches) == 0 {
			continue
		}
		if plans[i].err != nil {
			results[i] = photoUpload{status: models.PhotoInvalid, err: plans[i].err}
			continue
		}
		g.Go(func() error {
			results[i] = s.store(ctx, categoryID, plans[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// rejectGaps marks every file whose index would leave an empty slot below it in
// a target gallery. A slot counts as filled when the gallery already holds it or
// another file in the batch supplies it, so files may arrive in any order.
func (s *PhotoService) rejectGaps(ctx context.Context, req PhotoUploadRequest, plans []photoPlan) error {
	filled := make(map[string]map[int]bool)
	fill := func(target string, index int) {
		if filled[target] == nil {
			filled[target] = make(map[int]bool)
		}
		filled[target][index] = true
	}

	shared := req.Mode == models.PhotoModePerSharedValue
	targets := func(plan photoPlan) []string {
		if shared {
			return []string{plan.key.Normalized}
		}
		out := make([]string, len(plan.matches))
		for i, rec := range plan.matches {
			out[i] = rec.ID.String()
		}
		return out
	}

	if shared {
		groups, err := s.products.ListPhotoGroups(ctx, req.CategoryID)
		if err != nil {
			return err
		}
		for _, group := range groups {
			if group.MappingProperty != req.MappingProperty {
				continue
			}
			for _, p := range group.Photos {
				fill(group.Key, p.Index)
			}
		}
	}
	for _, plan := range plans {
		if !shared {
			for _, rec := range plan.matches {
				for _, p := range rec.Photos {
					fill(rec.ID.String(), p.Index)
				}
			}
		}
		for _, target := range targets(plan) {
			fill(target, plan.key.Index)
		}
	}

	for i := range plans {
		for _, target := range targets(plans[i]) {
			if slot, ok := emptySlotBelow(filled[target], plans[i].key.Index); ok {
				plans[i].err = fmt.Errorf("%w: index %d needs slot %d filled first", ErrGalleryGap, plans[i].key.Index, slot)
				break
			}
		}
	}
	return nil
}

func emptySlotBelow(slots map[int]bool, index int) (int, bool) {
	for i := 0; i < index; i++ {
		if !slots[i] {
			return i, true
		}
	}
	return 0, false
}

func (s *PhotoService) store(ctx context.Context, categoryID string, plan photoPlan) photoUpload {
	info, err := ValidateImage(plan.file.Data, s.cfg.MaxPhotoBytes)
	if err != nil {
		return photoUpload{status: models.PhotoInvalid, err: err}
	}
	if err := ctx.Err(); err != nil {
		return photoUpload{status: models.PhotoFailed, err: err}
	}

	objectKey := fmt.Sprintf("categories/%s/%s/%d-%s%s",
		categoryID, plan.key.Normalized, plan.key.Index, uuid.NewString(), info.Extension)
	url, err := s.storage.Put(ctx, objectKey, plan.file.Data, info.ContentType)
	if err != nil {
		s.logger.WithError(err).WithField("file", plan.file.Name).Warn("Failed to store photo")
		return photoUpload{status: models.PhotoFailed, err: err}
	}

	return photoUpload{asset: &models.PhotoAsset{
		Index:       plan.key.Index,
		StorageKey:  objectKey,
		URL:         url,
		FileName:    plan.file.Name,
		MatchedKey:  plan.key.Normalized,
		ContentType: info.ContentType,
		Size:        int64(len(plan.file.Data)),
		UploadedAt:  time.Now().UTC(),
	}}
}

// assign writes one stored file to its records. A failed write removes the
// stored object so no half-assigned asset remains.
func (s *PhotoService) assign(ctx context.Context, req PhotoUploadRequest, plan photoPlan, up photoUpload) FileOutcome {
	result := models.PhotoFileResult{
		FileName: plan.file.Name,
		Key:      plan.key.Base,
		Index:    plan.key.Index,
	}

	if len(plan.matches) == 0 {
		result.Status = models.PhotoUnmatched
		result.Message = fmt.Sprintf("no record found for key %s", plan.key.Base)
		return FileOutcome{Result: result}
	}
	if up.asset == nil {
		result.Status = up.status
		if result.Status == "" {
			result.Status = models.PhotoFailed
		}
		if up.err != nil {
			result.Message = up.err.Error()
		}
		return FileOutcome{Result: result}
	}

	ids := plan.recordIDs()
	links := 0
	var err error
	switch req.Mode {
	case models.PhotoModePerSharedValue:
		groupKey := repository.PhotoGroupKey{
			CategoryID:      req.CategoryID,
			MappingProperty: req.MappingProperty,
			Key:             plan.key.Normalized,
		}
		_, err = s.products.AttachSharedPhoto(ctx, groupKey, ids, *up.asset)
		links = 1
	default:
		err = s.products.AttachPhoto(ctx, req.CategoryID, ids, *up.asset)
		links = len(ids)
	}

	if err != nil {
		s.logger.WithError(err).WithField("file", plan.file.Name).Warn("Failed to assign photo")
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), up.asset.StorageKey); delErr != nil {
			s.logger.WithError(delErr).WithField("key", up.asset.StorageKey).Warn("Failed to remove unassigned photo")
		}
		result.Status = models.PhotoFailed
		result.Message = err.Error()
		return FileOutcome{Result: result}
	}

	result.Status = models.PhotoLinked
	result.URL = up.asset.URL
	result.RecordIDs = make([]string, len(ids))
	for i, id := range ids {
		result.RecordIDs[i] = id.String()
	}
	return FileOutcome{Result: result, Stored: true, Bytes: up.asset.Size, Links: links}
}

// discard removes stored objects that will never be assigned
func (s *PhotoService) discard(ctx context.Context, uploads []photoUpload) {
	for _, up := range uploads {
		if up.asset == nil {
			continue
		}
		if err := s.storage.Delete(ctx, up.asset.StorageKey); err != nil {
			s.logger.WithError(err).WithField("key", up.asset.StorageKey).Warn("Failed to remove unassigned photo")
		}
	}
}

// ClearPhotos removes every photo link in the category
func (s *PhotoService) ClearPhotos(ctx context.Context, categoryID string) (*models.ClearPhotosResult, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidPhotoRequest)
	}
	result, err := s.products.ClearPhotos(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear photos for category %s: %w", categoryID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"category_id":     categoryID,
		"cleaned_records": result.CleanedRecords,
		"removed_photos":  result.RemovedPhotos,
		"removed_groups":  result.RemovedGroups,
	}).Info("Photos cleared")
	return result, nil
}

func (s *PhotoService) finish(ctx context.Context, report *models.PhotoReport, status models.ImportStatus, bytesStored int64) {
	metrics.RecordPhotos(report, status, bytesStored)

	s.logger.WithFields(logrus.Fields{
		"run_id":         report.RunID,
		"category_id":    report.CategoryID,
		"status":         status,
		"total":          report.Total,
		"uploaded":       report.Uploaded,
		"linked":         report.Linked,
		"errors":         report.Errors,
		"unmatched":      report.Unmatched,
		"unique_records": report.UniqueRecords,
		"duration_ms":    report.ProcessingMs,
	}).Info("Photo upload finished")

	if s.history != nil {
		data, err := json.Marshal(report)
		if err == nil {
			entry := &models.ImportHistory{
				RunID:      report.RunID,
				Kind:       models.ImportKindPhotos,
				CategoryID: report.CategoryID,
				FileName:   fmt.Sprintf("%d photos", report.Total),
				Total:      report.Total,
				Succeeded:  report.Uploaded,
				Failed:     report.Errors,
				Status:     status,
				Report:     datatypes.JSON(data),
			}
			err = s.history.Create(ctx, entry)
		}
		if err != nil {
			s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to save photo history")
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPhotosCompleted(ctx, report, status); err != nil {
			s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to publish photos event")
		}
	}
}
