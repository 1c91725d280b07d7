package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"catalog-import-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ProductRepositoryInterface is the store the import and photo pipelines write through
type ProductRepositoryInterface interface {
	FindByIdentityKey(ctx context.Context, categoryID, sku string) (*models.ProductRecord, error)
	ListByCategory(ctx context.Context, categoryID string) ([]models.ProductRecord, error)
	Create(ctx context.Context, record *models.ProductRecord) error
	Update(ctx context.Context, record *models.ProductRecord) error

	// AttachPhoto sets the asset on every record's own gallery in one transaction
	AttachPhoto(ctx context.Context, categoryID string, recordIDs []uuid.UUID, asset models.PhotoAsset) error
	// AttachSharedPhoto sets the asset on the shared group for key and points
	// every record at that group, in one transaction
	AttachSharedPhoto(ctx context.Context, key PhotoGroupKey, recordIDs []uuid.UUID, asset models.PhotoAsset) (*models.PhotoGroup, error)
	ClearPhotos(ctx context.Context, categoryID string) (*models.ClearPhotosResult, error)
	ListPhotoGroups(ctx context.Context, categoryID string) ([]models.PhotoGroup, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.ProductRecord, error)
	ListProducts(ctx context.Context, categoryID string, limit, offset int) ([]models.ProductRecord, int64, error)
}

// PhotoGroupKey identifies one shared gallery
type PhotoGroupKey struct {
	CategoryID      string
	MappingProperty string
	Key             string
}

// TemplateRepositoryInterface stores category templates
type TemplateRepositoryInterface interface {
	GetByCategory(ctx context.Context, categoryID string) (*models.Template, error)
	Save(ctx context.Context, tpl *models.Template) error
}

// HistoryRepositoryInterface stores run summaries
type HistoryRepositoryInterface interface {
	Create(ctx context.Context, entry *models.ImportHistory) error
	List(ctx context.Context, categoryID string, limit int) ([]models.ImportHistory, error)
}
