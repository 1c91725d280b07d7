package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog-import-service/internal/models"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

var _ HistoryRepositoryInterface = (*HistoryRepository)(nil)

func (r *HistoryRepository) Create(ctx context.Context, entry *models.ImportHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns the latest runs, newest first. An empty categoryID lists every category.
func (r *HistoryRepository) List(ctx context.Context, categoryID string, limit int) ([]models.ImportHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := r.db.WithContext(ctx).Model(&models.ImportHistory{})
	if categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var entries []models.ImportHistory
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
