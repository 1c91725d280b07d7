package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/models"
)

func TestRecordImport(t *testing.T) {
	InitMetrics("catalog_import_test")

	before := testutil.ToFloat64(ImportRowsTotal.WithLabelValues(string(models.RowCreated)))
	runs := testutil.ToFloat64(ImportRunsTotal.WithLabelValues("products", "partial"))

	RecordImport(&models.ImportReport{Total: 4, Created: 2, Updated: 1, Invalid: 1}, models.ImportStatusPartial)
	RecordImport(nil, models.ImportStatusPartial)

	assert.Equal(t, before+2, testutil.ToFloat64(ImportRowsTotal.WithLabelValues(string(models.RowCreated))))
	assert.Equal(t, runs+1, testutil.ToFloat64(ImportRunsTotal.WithLabelValues("products", "partial")))
}

func TestRecordPhotos(t *testing.T) {
	InitMetrics("catalog_import_test")

	links := testutil.ToFloat64(PhotoLinksTotal)
	stored := testutil.ToFloat64(PhotoUploadedBytes)

	RecordPhotos(&models.PhotoReport{
		Linked: 3,
		Files:  []models.PhotoFileResult{{Status: models.PhotoLinked}, {Status: models.PhotoUnmatched}},
	}, models.ImportStatusPartial, 512)

	assert.Equal(t, links+3, testutil.ToFloat64(PhotoLinksTotal))
	assert.Equal(t, stored+512, testutil.ToFloat64(PhotoUploadedBytes))
}

func TestMiddlewareAndHandler(t *testing.T) {
	InitMetrics("catalog_import_test")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "204"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalog_import_test_http_requests_total")
}
