package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
)

// TemplateRequest is the body of PUT /categories/:categoryId/template
type TemplateRequest struct {
	Name             string               `json:"name"`
	IdentityField    string               `json:"identityField"`
	RequiredFields   []string             `json:"requiredFields"`
	CalculatorFields []string             `json:"calculatorFields"`
	ExportFields     []string             `json:"exportFields"`
	Fields           []models.ImportField `json:"fields"`
	IsActive         *bool                `json:"isActive"`
}

type TemplateHandler struct {
	templates TemplateService
}

func NewTemplateHandler(templates TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// GetTemplate returns the category's template as JSON, or a blank import file
// @Summary Get import template
// @Tags templates
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param format query string false "json, xlsx or csv"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{categoryId}/template [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	categoryID := c.Param("categoryId")
	format := strings.ToLower(c.DefaultQuery("format", "json"))

	tpl, err := h.templates.Resolve(c.Request.Context(), categoryID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			errorJSON(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load template")
		return
	}

	switch format {
	case "json":
		c.JSON(http.StatusOK, models.SuccessResponse{
			Success: true,
			Data:    tpl,
		})
	case "xlsx":
		f := services.BuildTemplateWorkbook(tpl)
		defer f.Close()

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import_template_%s.xlsx", categoryID))
		if err := f.Write(c.Writer); err != nil {
			errorJSON(c, http.StatusInternalServerError, "GENERATION_FAILED", "Failed to generate template")
		}
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import_template_%s.csv", categoryID))
		if err := services.WriteTemplateCSV(c.Writer, tpl); err != nil {
			errorJSON(c, http.StatusInternalServerError, "GENERATION_FAILED", "Failed to generate template")
		}
	default:
		fieldErrorJSON(c, "INVALID_FORMAT", "Format must be json, xlsx or csv", "format")
	}
}

// PutTemplate creates or replaces the category's template
// @Summary Save import template
// @Tags templates
// @Accept json
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param template body TemplateRequest true "Template"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /categories/{categoryId}/template [put]
func (h *TemplateHandler) PutTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tpl := &models.Template{
		CategoryID:       c.Param("categoryId"),
		Name:             req.Name,
		IdentityField:    req.IdentityField,
		RequiredFields:   req.RequiredFields,
		CalculatorFields: req.CalculatorFields,
		ExportFields:     req.ExportFields,
		Fields:           req.Fields,
		IsActive:         req.IsActive == nil || *req.IsActive,
	}

	if err := h.templates.Save(c.Request.Context(), tpl); err != nil {
		if errors.Is(err, models.ErrInvalidTemplate) {
			errorJSON(c, http.StatusBadRequest, "INVALID_TEMPLATE", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "SAVE_FAILED", "Failed to save template")
		return
	}

	message := "Template saved"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    tpl,
		Message: &message,
	})
}
