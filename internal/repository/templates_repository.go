package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-import-service/internal/models"
)

const TemplateCacheTTL = 30 * time.Minute // Templates rarely change

type TemplatesRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewTemplatesRepository(db *gorm.DB, redis *redis.Client) *TemplatesRepository {
	return &TemplatesRepository{
		db:    db,
		redis: redis,
	}
}

var _ TemplateRepositoryInterface = (*TemplatesRepository)(nil)

func templateCacheKey(categoryID string) string {
	return fmt.Sprintf("catalog:templates:%s", categoryID)
}

// GetByCategory returns the category's template, cached
func (r *TemplatesRepository) GetByCategory(ctx context.Context, categoryID string) (*models.Template, error) {
	cacheKey := templateCacheKey(categoryID)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var tpl models.Template
			if err := json.Unmarshal([]byte(val), &tpl); err == nil {
				return &tpl, nil
			}
		}
	}

	var tpl models.Template
	err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(tpl); err == nil {
			r.redis.Set(ctx, cacheKey, data, TemplateCacheTTL)
		}
	}
	return &tpl, nil
}

// Save creates the category's template or replaces the stored one
func (r *TemplatesRepository) Save(ctx context.Context, tpl *models.Template) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Template
		err := tx.Where("category_id = ?", tpl.CategoryID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(tpl).Error
		case err != nil:
			return err
		}
		tpl.ID = existing.ID
		tpl.CreatedAt = existing.CreatedAt
		return tx.Save(tpl).Error
	})
	if err != nil {
		return err
	}

	if r.redis != nil {
		r.redis.Del(ctx, templateCacheKey(tpl.CategoryID))
	}
	return nil
}
