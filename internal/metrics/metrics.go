package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalog-import-service/internal/models"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Import metrics
	ImportRunsTotal    *prometheus.CounterVec
	ImportRowsTotal    *prometheus.CounterVec
	ImportRunDuration  *prometheus.HistogramVec
	PhotoFilesTotal    *prometheus.CounterVec
	PhotoLinksTotal    prometheus.Counter
	PhotoUploadedBytes prometheus.Counter

	initOnce sync.Once
)

// InitMetrics registers every collector under the given prefix. Only the first call has effect.
func InitMetrics(prefix string) {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		)

		ImportRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_import_runs_total",
				Help: "Total number of import runs by kind and final status",
			},
			[]string{"kind", "status"},
		)

		ImportRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_import_rows_total",
				Help: "Total number of spreadsheet rows by outcome",
			},
			[]string{"outcome"},
		)

		ImportRunDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_import_run_duration_seconds",
				Help:    "Duration of import runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		)

		PhotoFilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_photo_files_total",
				Help: "Total number of uploaded photo files by status",
			},
			[]string{"status"},
		)

		PhotoLinksTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_photo_links_total",
			Help: "Total number of photo assignments written",
		})

		PhotoUploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_photo_uploaded_bytes_total",
			Help: "Total number of photo bytes written to storage",
		})
	})
}

func initialized() bool {
	return ImportRunsTotal != nil
}

// RecordImport counts one finished spreadsheet run
func RecordImport(report *models.ImportReport, status models.ImportStatus) {
	if !initialized() || report == nil {
		return
	}
	kind := string(models.ImportKindProducts)
	ImportRunsTotal.WithLabelValues(kind, string(status)).Inc()
	ImportRowsTotal.WithLabelValues(string(models.RowCreated)).Add(float64(report.Created))
	ImportRowsTotal.WithLabelValues(string(models.RowUpdated)).Add(float64(report.Updated))
	ImportRowsTotal.WithLabelValues(string(models.RowInvalid)).Add(float64(report.Invalid))
	ImportRowsTotal.WithLabelValues(string(models.RowSkipped)).Add(float64(report.Skipped))
	ImportRunDuration.WithLabelValues(kind).Observe(float64(report.ProcessingMs) / 1000)
}

// RecordPhotos counts one finished photo run
func RecordPhotos(report *models.PhotoReport, status models.ImportStatus, bytesStored int64) {
	if !initialized() || report == nil {
		return
	}
	kind := string(models.ImportKindPhotos)
	ImportRunsTotal.WithLabelValues(kind, string(status)).Inc()
	for _, f := range report.Files {
		PhotoFilesTotal.WithLabelValues(f.Status).Inc()
	}
	PhotoLinksTotal.Add(float64(report.Linked))
	PhotoUploadedBytes.Add(float64(bytesStored))
	ImportRunDuration.WithLabelValues(kind).Observe(float64(report.ProcessingMs) / 1000)
}

// Middleware tracks request counts and durations per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !initialized() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
