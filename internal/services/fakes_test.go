package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// memoryProducts is an in-memory ProductRepositoryInterface
type memoryProducts struct {
	mu      sync.Mutex
	order   []uuid.UUID
	records map[uuid.UUID]models.ProductRecord
	groups  map[repository.PhotoGroupKey]*models.PhotoGroup

	createErr error
	attachErr error
	creates   int
	updates   int
}

var _ repository.ProductRepositoryInterface = (*memoryProducts)(nil)

func newMemoryProducts() *memoryProducts {
	return &memoryProducts{
		records: make(map[uuid.UUID]models.ProductRecord),
		groups:  make(map[repository.PhotoGroupKey]*models.PhotoGroup),
	}
}

func copyRecord(r models.ProductRecord) models.ProductRecord {
	r.Properties = r.Properties.Clone()
	r.Photos = append(models.Gallery{}, r.Photos...)
	return r
}

func (m *memoryProducts) seed(categoryID, sku string, props models.Properties) models.ProductRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if props == nil {
		props = models.Properties{}
	}
	rec := models.ProductRecord{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		InternalSKU: sku,
		Properties:  props,
		Photos:      models.Gallery{},
		CreatedAt:   time.Now(),
	}
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return copyRecord(rec)
}

func (m *memoryProducts) get(id uuid.UUID) models.ProductRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.records[id])
}

func (m *memoryProducts) group(key repository.PhotoGroupKey) *models.PhotoGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[key]
}

func (m *memoryProducts) count(categoryID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (m *memoryProducts) FindByIdentityKey(ctx context.Context, categoryID, sku string) (*models.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		rec := m.records[id]
		if rec.CategoryID == categoryID && rec.InternalSKU == sku {
			out := copyRecord(rec)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryProducts) ListByCategory(ctx context.Context, categoryID string) ([]models.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProductRecord
	for _, id := range m.order {
		if rec := m.records[id]; rec.CategoryID == categoryID {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (m *memoryProducts) Create(ctx context.Context, record *models.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, rec := range m.records {
		if rec.InternalSKU == record.InternalSKU {
			return fmt.Errorf("duplicate sku %s", record.InternalSKU)
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m.records[record.ID] = copyRecord(*record)
	m.order = append(m.order, record.ID)
	m.creates++
	return nil
}

func (m *memoryProducts) Update(ctx context.Context, record *models.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[record.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Properties = record.Properties.Clone()
	rec.PhotoGroupID = record.PhotoGroupID
	m.records[record.ID] = rec
	m.updates++
	return nil
}

func (m *memoryProducts) AttachPhoto(ctx context.Context, categoryID string, recordIDs []uuid.UUID, asset models.PhotoAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	for _, id := range recordIDs {
		if rec, ok := m.records[id]; !ok || rec.CategoryID != categoryID {
			return repository.ErrNotFound
		}
	}
	for _, id := range recordIDs {
		rec := m.records[id]
		rec.Photos = rec.Photos.Set(asset)
		m.records[id] = rec
	}
	return nil
}

func (m *memoryProducts) AttachSharedPhoto(ctx context.Context, key repository.PhotoGroupKey, recordIDs []uuid.UUID, asset models.PhotoAsset) (*models.PhotoGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	g, ok := m.groups[key]
	if !ok {
		g = &models.PhotoGroup{
			ID:              uuid.New(),
			CategoryID:      key.CategoryID,
			MappingProperty: key.MappingProperty,
			Key:             key.Key,
			Photos:          models.Gallery{},
		}
		m.groups[key] = g
	}
	g.Photos = g.Photos.Set(asset)
	for _, id := range recordIDs {
		rec, ok := m.records[id]
		if !ok {
			return nil, repository.ErrNotFound
		}
		groupID := g.ID
		rec.PhotoGroupID = &groupID
		m.records[id] = rec
	}
	return g, nil
}

func (m *memoryProducts) ClearPhotos(ctx context.Context, categoryID string) (*models.ClearPhotosResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &models.ClearPhotosResult{CategoryID: categoryID}
	for id, rec := range m.records {
		if rec.CategoryID != categoryID || (len(rec.Photos) == 0 && rec.PhotoGroupID == nil) {
			continue
		}
		result.RemovedPhotos += len(rec.Photos)
		result.CleanedRecords++
		rec.Photos = models.Gallery{}
		rec.PhotoGroupID = nil
		m.records[id] = rec
	}
	for key, g := range m.groups {
		if key.CategoryID == categoryID {
			result.RemovedPhotos += len(g.Photos)
			result.RemovedGroups++
			delete(m.groups, key)
		}
	}
	return result, nil
}

func (m *memoryProducts) ListPhotoGroups(ctx context.Context, categoryID string) ([]models.PhotoGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PhotoGroup
	for key, g := range m.groups {
		if key.CategoryID == categoryID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryProducts) GetByID(ctx context.Context, id uuid.UUID) (*models.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

func (m *memoryProducts) ListProducts(ctx context.Context, categoryID string, limit, offset int) ([]models.ProductRecord, int64, error) {
	all, _ := m.ListByCategory(ctx, categoryID)
	total := int64(len(all))
	if offset >= len(all) {
		return []models.ProductRecord{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

// memoryTemplates is an in-memory TemplateRepositoryInterface
type memoryTemplates struct {
	mu        sync.Mutex
	templates map[string]models.Template
}

func newMemoryTemplates(tpls ...*models.Template) *memoryTemplates {
	m := &memoryTemplates{templates: make(map[string]models.Template)}
	for _, tpl := range tpls {
		m.templates[tpl.CategoryID] = *tpl
	}
	return m
}

func (m *memoryTemplates) GetByCategory(ctx context.Context, categoryID string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[categoryID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tpl, nil
}

func (m *memoryTemplates) Save(ctx context.Context, tpl *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tpl.CategoryID] = *tpl
	return nil
}

// memoryHistory is an in-memory HistoryRepositoryInterface
type memoryHistory struct {
	mu      sync.Mutex
	entries []models.ImportHistory
}

func (m *memoryHistory) Create(ctx context.Context, entry *models.ImportHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryHistory) List(ctx context.Context, categoryID string, limit int) ([]models.ImportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ImportHistory(nil), m.entries...), nil
}

// memoryStorage is an in-memory PhotoStorage
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memoryStorage) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu      sync.Mutex
	imports []models.ImportStatus
	photos  []models.ImportStatus
}

func (p *recordingPublisher) PublishImportCompleted(ctx context.Context, report *models.ImportReport, status models.ImportStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imports = append(p.imports, status)
	return nil
}

func (p *recordingPublisher) PublishPhotosCompleted(ctx context.Context, report *models.PhotoReport, status models.ImportStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photos = append(p.photos, status)
	return nil
}

var errStoreDown = errors.New("store unavailable")

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// pngBytes renders a small solid PNG
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
