package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-import-service/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Template{},
		&models.PhotoGroup{},
		&models.ProductRecord{},
		&models.ImportHistory{},
	))
	return db
}

func newRecord(categoryID, sku string, props models.Properties) *models.ProductRecord {
	return &models.ProductRecord{
		CategoryID:  categoryID,
		InternalSKU: sku,
		Properties:  props,
		Photos:      models.Gallery{},
	}
}

func TestProductsRepository_CreateFindUpdate(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	rec := newRecord("chairs", "A1", models.Properties{
		"model_name": models.TextValue("D5"),
		"price":      models.NumberValue(900),
	})
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)

	found, err := repo.FindByIdentityKey(ctx, "chairs", "A1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.True(t, found.Properties["price"].Equal(models.NumberValue(900)))

	_, err = repo.FindByIdentityKey(ctx, "tables", "A1")
	assert.ErrorIs(t, err, ErrNotFound)

	found.Properties["price"] = models.NumberValue(950)
	require.NoError(t, repo.Update(ctx, found))

	again, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, again.Properties["price"].Equal(models.NumberValue(950)))
	assert.Equal(t, "D5", again.Properties["model_name"].String())

	err = repo.Update(ctx, &models.ProductRecord{ID: uuid.New(), Properties: models.Properties{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductsRepository_DuplicateSKURejected(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord("chairs", "A1", nil)))
	assert.Error(t, repo.Create(ctx, newRecord("chairs", "A1", nil)))
}

func TestProductsRepository_ListByCategoryAndPaging(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := newRecord("chairs", fmt.Sprintf("C%d", i), nil)
		rec.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, rec))
	}
	require.NoError(t, repo.Create(ctx, newRecord("tables", "T1", nil)))

	all, err := repo.ListByCategory(ctx, "chairs")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "C0", all[0].InternalSKU)

	page, total, err := repo.ListProducts(ctx, "chairs", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "C2", page[0].InternalSKU)
	assert.Equal(t, "C3", page[1].InternalSKU)
}

func TestProductsRepository_AttachPhoto(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	a := newRecord("chairs", "A1", nil)
	b := newRecord("chairs", "A2", nil)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	ids := []uuid.UUID{a.ID, b.ID}
	require.NoError(t, repo.AttachPhoto(ctx, "chairs", ids, models.PhotoAsset{Index: 1, StorageKey: "k1", URL: "u1"}))
	require.NoError(t, repo.AttachPhoto(ctx, "chairs", ids, models.PhotoAsset{Index: 0, StorageKey: "k0", URL: "u0"}))
	require.NoError(t, repo.AttachPhoto(ctx, "chairs", []uuid.UUID{a.ID}, models.PhotoAsset{Index: 1, StorageKey: "k1b", URL: "u1b"}))

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, gotA.Photos, 2)
	assert.Equal(t, "k0", gotA.Photos[0].StorageKey)
	assert.Equal(t, "k1b", gotA.Photos[1].StorageKey)

	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, gotB.Photos, 2)
	assert.Equal(t, "k1", gotB.Photos[1].StorageKey)

	err = repo.AttachPhoto(ctx, "tables", ids, models.PhotoAsset{Index: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	gotA, _ = repo.GetByID(ctx, a.ID)
	assert.Len(t, gotA.Photos, 2)
}

func TestProductsRepository_AttachSharedPhotoAndClear(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	a := newRecord("chairs", "A1", models.Properties{"model_name": models.TextValue("D5")})
	b := newRecord("chairs", "A2", models.Properties{"model_name": models.TextValue("d5")})
	c := newRecord("chairs", "A3", nil)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Create(ctx, c))

	key := PhotoGroupKey{CategoryID: "chairs", MappingProperty: "model_name", Key: "d5"}
	ids := []uuid.UUID{a.ID, b.ID}
	first, err := repo.AttachSharedPhoto(ctx, key, ids, models.PhotoAsset{Index: 0, StorageKey: "g0"})
	require.NoError(t, err)
	second, err := repo.AttachSharedPhoto(ctx, key, ids, models.PhotoAsset{Index: 1, StorageKey: "g1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Photos, 2)

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, gotA.PhotoGroupID)
	assert.Equal(t, first.ID, *gotA.PhotoGroupID)
	require.NotNil(t, gotA.PhotoGroup)
	assert.Len(t, gotA.PhotoGroup.Photos, 2)

	require.NoError(t, repo.AttachPhoto(ctx, "chairs", []uuid.UUID{c.ID}, models.PhotoAsset{Index: 0, StorageKey: "own"}))

	result, err := repo.ClearPhotos(ctx, "chairs")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.CleanedRecords)
	assert.Equal(t, 3, result.RemovedPhotos)
	assert.Equal(t, int64(1), result.RemovedGroups)

	gotA, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.PhotoGroupID)
	assert.Empty(t, gotA.Photos)
	gotC, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, gotC.Photos)
}

func TestProductsRepository_UpdateMovesPhotoGroup(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	a := newRecord("chairs", "A1", models.Properties{"model_name": models.TextValue("D5")})
	b := newRecord("chairs", "A2", models.Properties{"model_name": models.TextValue("D6")})
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	d5, err := repo.AttachSharedPhoto(ctx, PhotoGroupKey{CategoryID: "chairs", MappingProperty: "model_name", Key: "d5"},
		[]uuid.UUID{a.ID}, models.PhotoAsset{Index: 0, StorageKey: "g5"})
	require.NoError(t, err)
	_, err = repo.AttachSharedPhoto(ctx, PhotoGroupKey{CategoryID: "tables", MappingProperty: "model_name", Key: "t1"},
		nil, models.PhotoAsset{Index: 0, StorageKey: "t1"})
	require.NoError(t, err)

	groups, err := repo.ListPhotoGroups(ctx, "chairs")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, d5.ID, groups[0].ID)
	assert.Equal(t, "d5", groups[0].Key)

	b.PhotoGroupID = &d5.ID
	require.NoError(t, repo.Update(ctx, b))
	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, gotB.PhotoGroupID)
	assert.Equal(t, d5.ID, *gotB.PhotoGroupID)

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gotA.Properties["model_name"] = models.TextValue("D7")
	gotA.PhotoGroupID = nil
	require.NoError(t, repo.Update(ctx, gotA))
	gotA, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.PhotoGroupID)
	assert.Equal(t, "D7", gotA.Properties["model_name"].String())
}

func TestProductsRepository_AttachSharedPhotoUnknownRecord(t *testing.T) {
	repo := NewProductsRepository(setupTestDB(t), nil)
	ctx := context.Background()

	key := PhotoGroupKey{CategoryID: "chairs", MappingProperty: "model_name", Key: "d5"}
	_, err := repo.AttachSharedPhoto(ctx, key, []uuid.UUID{uuid.New()}, models.PhotoAsset{Index: 0})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplatesRepository_SaveAndReplace(t *testing.T) {
	repo := NewTemplatesRepository(setupTestDB(t), nil)
	ctx := context.Background()

	_, err := repo.GetByCategory(ctx, "chairs")
	assert.ErrorIs(t, err, ErrNotFound)

	tpl := &models.Template{
		CategoryID:     "chairs",
		Name:           "Chairs",
		IsActive:       true,
		RequiredFields: []string{"model_name"},
		Fields: []models.ImportField{
			{Name: "material", Kind: models.FieldSelect, Options: []string{"Oak"}},
		},
	}
	require.NoError(t, repo.Save(ctx, tpl))
	firstID := tpl.ID

	replacement := &models.Template{CategoryID: "chairs", Name: "Chairs v2", IsActive: false, RequiredFields: []string{"price"}}
	require.NoError(t, repo.Save(ctx, replacement))
	assert.Equal(t, firstID, replacement.ID)

	got, err := repo.GetByCategory(ctx, "chairs")
	require.NoError(t, err)
	assert.Equal(t, "Chairs v2", got.Name)
	assert.False(t, got.IsActive)
	assert.Equal(t, []string{"price"}, []string(got.RequiredFields))
	assert.Empty(t, got.Fields)
}

func TestHistoryRepository_List(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, cat := range []string{"chairs", "tables", "chairs"} {
		require.NoError(t, repo.Create(ctx, &models.ImportHistory{
			RunID:      fmt.Sprintf("run-%d", i),
			Kind:       models.ImportKindProducts,
			CategoryID: cat,
			Status:     models.ImportStatusCompleted,
			Report:     datatypes.JSON(`{"total":1}`),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-2", all[0].RunID)

	chairs, err := repo.List(ctx, "chairs", 1)
	require.NoError(t, err)
	require.Len(t, chairs, 1)
	assert.Equal(t, "run-2", chairs[0].RunID)
}
