package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/models"
)

func TestParsePhotoKey(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		suffix bool
		base   string
		norm   string
		index  int
	}{
		{"plain", "d5.png", true, "d5", "d5", 0},
		{"gallery suffix", "d5_1.png", true, "d5", "d5", 1},
		{"multi digit", "D5_12.JPG", true, "D5", "d5", 12},
		{"suffix off", "d5_1.png", false, "d5_1", "d51", 0},
		{"non numeric suffix", "d5_a.png", true, "d5_a", "d5a", 0},
		{"windows path", `C:\photos\Стул-1.jpeg`, true, "Стул-1", "стул1", 0},
		{"nested path", "batch/2024/x1_3.webp", true, "x1", "x1", 3},
		{"no extension", "x1_2", true, "x1", "x1", 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			key := ParsePhotoKey(tt.file, tt.suffix)
			assert.Equal(t, tt.base, key.Base)
			assert.Equal(t, tt.norm, key.Normalized)
			assert.Equal(t, tt.index, key.Index)
		})
	}
}

func TestNormalizeKey_IsSymmetric(t *testing.T) {
	variants := []string{"D5", "d5", "d-5", "D 5", "d_5", "d.5", "Ｄ５"}
	for _, v := range variants {
		assert.Equal(t, "d5", NormalizeKey(v), v)
	}

	assert.Equal(t, NormalizeKey("СТУЛ Classic"), NormalizeKey("стул-classic"))
	assert.Equal(t, "", NormalizeKey(" _-. "))
}

func TestMatchIndex(t *testing.T) {
	records := []models.ProductRecord{
		{InternalSKU: "S1", Properties: models.Properties{"article": models.TextValue("AB-1")}},
		{InternalSKU: "S2", Properties: models.Properties{"article": models.TextValue("ab 1")}},
		{InternalSKU: "S3", Properties: models.Properties{"article": models.NumberValue(12345)}},
		{InternalSKU: "S4", Properties: models.Properties{}},
	}

	idx := NewMatchIndex(records, "article", models.DefaultIdentityField)

	assert.Equal(t, 2, idx.Keys())
	matches := idx.FindByMappingPropertyNormalized("ab1")
	require.Len(t, matches, 2)
	assert.Equal(t, "S1", matches[0].InternalSKU)
	assert.Equal(t, "S2", matches[1].InternalSKU)
	assert.Len(t, idx.FindByMappingPropertyNormalized(NormalizeKey("12345")), 1)
	assert.Empty(t, idx.FindByMappingPropertyNormalized(""))
	assert.Empty(t, idx.FindByMappingPropertyNormalized("missing"))
}

func TestValidateImage(t *testing.T) {
	info, err := ValidateImage(pngBytes(t, 5, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, ".png", info.Extension)
	assert.Equal(t, 5, info.Width)
	assert.Equal(t, 2, info.Height)

	_, err = ValidateImage(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = ValidateImage(pngBytes(t, 5, 2), 10)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = ValidateImage([]byte("plain text, not a picture"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	truncated := pngBytes(t, 5, 2)[:20]
	_, err = ValidateImage(truncated, 0)
	assert.ErrorIs(t, err, ErrCorruptImage)
}
