package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-import-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute // Single product cache
	ProductListCacheTTL = 2 * time.Minute // Product list cache (shorter due to frequent imports)
)

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	return &ProductsRepository{
		db:    db,
		redis: redis,
	}
}

var _ ProductRepositoryInterface = (*ProductsRepository)(nil)

func productCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("catalog:products:product:%s", id.String())
}

func productListCachePattern(categoryID string) string {
	return fmt.Sprintf("catalog:products:list:%s:*", categoryID)
}

// invalidateProductCaches drops the cached records and every list cache of the category
func (r *ProductsRepository) invalidateProductCaches(ctx context.Context, categoryID string, ids ...uuid.UUID) {
	if r.redis == nil {
		return
	}

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = productCacheKey(id)
		}
		r.redis.Del(ctx, keys...)
	}
	keys, _ := r.redis.Keys(ctx, productListCachePattern(categoryID)).Result()
	if len(keys) > 0 {
		r.redis.Del(ctx, keys...)
	}
}

// forUpdate adds a row lock where the dialect supports it
func (r *ProductsRepository) forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// FindByIdentityKey looks a record up by its internal SKU within a category
func (r *ProductsRepository) FindByIdentityKey(ctx context.Context, categoryID, sku string) (*models.ProductRecord, error) {
	var record models.ProductRecord
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND internal_sku = ?", categoryID, sku).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByCategory returns every record of a category straight from the database
func (r *ProductsRepository) ListByCategory(ctx context.Context, categoryID string) ([]models.ProductRecord, error) {
	var records []models.ProductRecord
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// Create inserts a new record
func (r *ProductsRepository) Create(ctx context.Context, record *models.ProductRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
	if err == nil {
		r.invalidateProductCaches(ctx, record.CategoryID)
	}
	return err
}

// Update writes the record's properties and shared photo group back
func (r *ProductsRepository) Update(ctx context.Context, record *models.ProductRecord) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductRecord{ID: record.ID}).
		Updates(map[string]interface{}{
			"properties":     record.Properties,
			"photo_group_id": record.PhotoGroupID,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidateProductCaches(ctx, record.CategoryID, record.ID)
	return nil
}

// ListPhotoGroups returns the category's shared galleries, oldest first
func (r *ProductsRepository) ListPhotoGroups(ctx context.Context, categoryID string) ([]models.PhotoGroup, error) {
	var groups []models.PhotoGroup
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("created_at ASC").
		Find(&groups).Error
	return groups, err
}

// AttachPhoto puts the asset into each record's gallery at asset.Index
func (r *ProductsRepository) AttachPhoto(ctx context.Context, categoryID string, recordIDs []uuid.UUID, asset models.PhotoAsset) error {
	if len(recordIDs) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []models.ProductRecord
		if err := r.forUpdate(tx).
			Where("category_id = ? AND id IN ?", categoryID, recordIDs).
			Find(&records).Error; err != nil {
			return err
		}
		if len(records) != len(recordIDs) {
			return fmt.Errorf("attach photo: %d of %d records: %w", len(records), len(recordIDs), ErrNotFound)
		}

		for i := range records {
			gallery := records[i].Photos.Set(asset)
			if err := tx.Model(&records[i]).Update("photos", gallery).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.invalidateProductCaches(ctx, categoryID, recordIDs...)
	return nil
}

// AttachSharedPhoto puts the asset into the shared group gallery and links every record to the group
func (r *ProductsRepository) AttachSharedPhoto(ctx context.Context, key PhotoGroupKey, recordIDs []uuid.UUID, asset models.PhotoAsset) (*models.PhotoGroup, error) {
	var group models.PhotoGroup

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := r.forUpdate(tx).
			Where("category_id = ? AND mapping_property = ? AND group_key = ?", key.CategoryID, key.MappingProperty, key.Key).
			First(&group).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			group = models.PhotoGroup{
				CategoryID:      key.CategoryID,
				MappingProperty: key.MappingProperty,
				Key:             key.Key,
				Photos:          models.Gallery{}.Set(asset),
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			group.Photos = group.Photos.Set(asset)
			if err := tx.Model(&group).Update("photos", group.Photos).Error; err != nil {
				return err
			}
		}

		if len(recordIDs) == 0 {
			return nil
		}
		result := tx.Model(&models.ProductRecord{}).
			Where("category_id = ? AND id IN ?", key.CategoryID, recordIDs).
			Update("photo_group_id", group.ID)
		if result.Error != nil {
			return result.Error
		}
		if int(result.RowsAffected) != len(recordIDs) {
			return fmt.Errorf("link photo group: %d of %d records: %w", result.RowsAffected, len(recordIDs), ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.invalidateProductCaches(ctx, key.CategoryID, recordIDs...)
	return &group, nil
}

// ClearPhotos removes every photo link in a category: record galleries are emptied,
// group references are cleared, and the category's photo groups are deleted
func (r *ProductsRepository) ClearPhotos(ctx context.Context, categoryID string) (*models.ClearPhotosResult, error) {
	result := &models.ClearPhotosResult{CategoryID: categoryID}
	var touched []uuid.UUID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []models.ProductRecord
		if err := tx.Where("category_id = ?", categoryID).Find(&records).Error; err != nil {
			return err
		}
		for _, rec := range records {
			if len(rec.Photos) > 0 || rec.PhotoGroupID != nil {
				touched = append(touched, rec.ID)
				result.RemovedPhotos += len(rec.Photos)
			}
		}

		var groups []models.PhotoGroup
		if err := tx.Where("category_id = ?", categoryID).Find(&groups).Error; err != nil {
			return err
		}
		for _, g := range groups {
			result.RemovedPhotos += len(g.Photos)
		}

		if len(touched) > 0 {
			upd := tx.Model(&models.ProductRecord{}).
				Where("id IN ?", touched).
				Updates(map[string]interface{}{
					"photos":         models.Gallery{},
					"photo_group_id": nil,
					"updated_at":     time.Now(),
				})
			if upd.Error != nil {
				return upd.Error
			}
			result.CleanedRecords = upd.RowsAffected
		}

		del := tx.Where("category_id = ?", categoryID).Delete(&models.PhotoGroup{})
		if del.Error != nil {
			return del.Error
		}
		result.RemovedGroups = del.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.invalidateProductCaches(ctx, categoryID, touched...)
	return result, nil
}

// GetByID returns one record with its shared photo group, using the cache when available
func (r *ProductsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProductRecord, error) {
	cacheKey := productCacheKey(id)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var record models.ProductRecord
			if err := json.Unmarshal([]byte(val), &record); err == nil {
				return &record, nil
			}
		}
	}

	var record models.ProductRecord
	err := r.db.WithContext(ctx).Preload("PhotoGroup").Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(record); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}
	return &record, nil
}

// ListProducts returns one page of a category's records, using the cache when available
func (r *ProductsRepository) ListProducts(ctx context.Context, categoryID string, limit, offset int) ([]models.ProductRecord, int64, error) {
	type productsPage struct {
		Products []models.ProductRecord `json:"products"`
		Total    int64                  `json:"total"`
	}
	cacheKey := fmt.Sprintf("catalog:products:list:%s:%d:%d", categoryID, limit, offset)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var page productsPage
			if err := json.Unmarshal([]byte(val), &page); err == nil {
				return page.Products, page.Total, nil
			}
		}
	}

	var page productsPage
	query := r.db.WithContext(ctx).Model(&models.ProductRecord{}).Where("category_id = ?", categoryID)
	if err := query.Count(&page.Total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Preload("PhotoGroup").
		Where("category_id = ?", categoryID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&page.Products).Error
	if err != nil {
		return nil, 0, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(page); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductListCacheTTL)
		}
	}
	return page.Products, page.Total, nil
}
