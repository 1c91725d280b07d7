package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type HistoryLister interface {
	List(ctx context.Context, categoryID string, limit int) ([]models.ImportHistory, error)
}

type ImportHandler struct {
	importer       Importer
	exporter       Exporter
	history        HistoryLister
	maxUploadBytes int64
}

func NewImportHandler(importer Importer, exporter Exporter, history HistoryLister, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{
		importer:       importer,
		exporter:       exporter,
		history:        history,
		maxUploadBytes: maxUploadBytes,
	}
}

// ImportProducts imports a spreadsheet of records into a category
// @Summary Import products from CSV or XLSX
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param file formData file true "CSV or XLSX file"
// @Param dryRun formData bool false "Validate without writing"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{categoryId}/import [post]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or Excel file")
		return
	}
	defer file.Close()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d MB limit", h.maxUploadBytes>>20))
		return
	}

	dryRun, err := strconv.ParseBool(c.DefaultPostForm("dryRun", "false"))
	if err != nil {
		fieldErrorJSON(c, "VALIDATION_ERROR", "dryRun must be true or false", "dryRun")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "PARSE_ERROR", "Failed to read uploaded file")
		return
	}

	report, err := h.importer.Import(c.Request.Context(), services.ImportRequest{
		CategoryID:  c.Param("categoryId"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		DryRun:      dryRun,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			errorJSON(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", err.Error())
		case errors.Is(err, ingest.ErrEmptyFile):
			errorJSON(c, http.StatusBadRequest, "EMPTY_FILE", "The file contains no header row or no data rows")
		case errors.Is(err, ingest.ErrUnreadableFile):
			errorJSON(c, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		case report != nil:
			// cancelled mid-run; the partial report is still useful
			c.JSON(http.StatusRequestTimeout, gin.H{
				"success": false,
				"data":    report,
				"error":   models.Error{Code: "CANCELLED", Message: err.Error()},
			})
		default:
			errorJSON(c, http.StatusInternalServerError, "IMPORT_FAILED", "Failed to import file")
		}
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    report,
	})
}

// ExportProducts downloads every record of a category as XLSX
// @Summary Export products to XLSX
// @Tags import
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param categoryId path string true "Category ID"
// @Router /categories/{categoryId}/export [get]
func (h *ImportHandler) ExportProducts(c *gin.Context) {
	categoryID := c.Param("categoryId")

	f, _, err := h.exporter.Export(c.Request.Context(), categoryID)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			errorJSON(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to export products")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("products_%s_%s.xlsx", categoryID, time.Now().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		errorJSON(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to write workbook")
	}
}

// ListHistory returns recent import and photo runs
// @Summary List import history
// @Tags import
// @Produce json
// @Param categoryId query string false "Category ID"
// @Param limit query int false "Max entries"
// @Router /imports [get]
func (h *ImportHandler) ListHistory(c *gin.Context) {
	limit := DefaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			fieldErrorJSON(c, "VALIDATION_ERROR", "limit must be a positive integer", "limit")
			return
		}
		limit = min(parsed, MaxHistoryLimit)
	}

	entries, err := h.history.List(c.Request.Context(), c.Query("categoryId"), limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load import history")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    entries,
	})
}
