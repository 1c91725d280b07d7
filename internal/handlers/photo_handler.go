package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
)

type PhotoHandler struct {
	photos          PhotoUploader
	maxRequestBytes int64
}

func NewPhotoHandler(photos PhotoUploader, maxRequestBytes int64) *PhotoHandler {
	return &PhotoHandler{photos: photos, maxRequestBytes: maxRequestBytes}
}

// UploadPhotos matches a batch of photo files to records by file name
// @Summary Upload and match photos
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param categoryId path string true "Category ID"
// @Param photos formData file true "Photo files"
// @Param mapping_property formData string true "Property matched against file names"
// @Param mode formData string false "per-product or per-shared-value"
// @Param suffix_parsing formData bool false "Treat _<n> as gallery index (default true)"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /categories/{categoryId}/photos [post]
func (h *PhotoHandler) UploadPhotos(c *gin.Context) {
	if h.maxRequestBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload one or more photos")
		return
	}
	headers := form.File["photos"]
	if len(headers) == 0 {
		fieldErrorJSON(c, "FILE_REQUIRED", "Please upload one or more photos", "photos")
		return
	}

	suffixParsing, err := strconv.ParseBool(c.DefaultPostForm("suffix_parsing", "true"))
	if err != nil {
		fieldErrorJSON(c, "VALIDATION_ERROR", "suffix_parsing must be true or false", "suffix_parsing")
		return
	}

	files := make([]services.PhotoFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "FILE_UNREADABLE", "Failed to read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "FILE_UNREADABLE", "Failed to read "+fh.Filename)
			return
		}
		files = append(files, services.PhotoFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	report, err := h.photos.Upload(c.Request.Context(), services.PhotoUploadRequest{
		CategoryID:      c.Param("categoryId"),
		MappingProperty: c.PostForm("mapping_property"),
		Mode:            models.PhotoMode(c.DefaultPostForm("mode", string(models.PhotoModePerProduct))),
		SuffixParsing:   suffixParsing,
		Files:           files,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPhotoRequest):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		case report != nil:
			c.JSON(http.StatusRequestTimeout, gin.H{
				"success": false,
				"data":    report,
				"error":   models.Error{Code: "CANCELLED", Message: err.Error()},
			})
		default:
			errorJSON(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to process photos")
		}
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    report,
	})
}

// ClearPhotos removes every photo link in the category
// @Summary Clear category photos
// @Tags photos
// @Produce json
// @Param categoryId path string true "Category ID"
// @Success 200 {object} models.SuccessResponse
// @Router /categories/{categoryId}/photos [delete]
func (h *PhotoHandler) ClearPhotos(c *gin.Context) {
	result, err := h.photos.ClearPhotos(c.Request.Context(), c.Param("categoryId"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidPhotoRequest) {
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "CLEAR_FAILED", "Failed to clear photos")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
	})
}
