package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
)

// The handlers depend on these narrow views of the services

type TemplateService interface {
	Resolve(ctx context.Context, categoryID string) (*models.Template, error)
	Save(ctx context.Context, tpl *models.Template) error
}

type Importer interface {
	Import(ctx context.Context, req services.ImportRequest) (*models.ImportReport, error)
}

type Exporter interface {
	Export(ctx context.Context, categoryID string) (*excelize.File, int, error)
}

type PhotoUploader interface {
	Upload(ctx context.Context, req services.PhotoUploadRequest) (*models.PhotoReport, error)
	ClearPhotos(ctx context.Context, categoryID string) (*models.ClearPhotosResult, error)
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

func fieldErrorJSON(c *gin.Context, code, message, field string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}
