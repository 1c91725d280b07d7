package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

const (
	DefaultProductLimit = 50
	MaxProductLimit     = 200
)

type ProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProductRecord, error)
	ListProducts(ctx context.Context, categoryID string, limit, offset int) ([]models.ProductRecord, int64, error)
}

type ProductHandler struct {
	products ProductReader
}

func NewProductHandler(products ProductReader) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts returns a page of a category's records
// @Summary List category products
// @Tags products
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Router /categories/{categoryId}/products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultProductLimit)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	if limit > MaxProductLimit {
		limit = MaxProductLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := h.products.ListProducts(c.Request.Context(), c.Param("categoryId"), limit, offset)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

// GetProduct returns one record with its gallery
// @Summary Get product
// @Tags products
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param id path string true "Product ID"
// @Router /categories/{categoryId}/products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fieldErrorJSON(c, "INVALID_ID", "Invalid product ID", "id")
		return
	}

	record, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load product")
		return
	}
	if record.CategoryID != c.Param("categoryId") {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    record,
	})
}
