package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treedrive",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "treedrive",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// FolderOperations counts folder operations by outcome (ok, a rejection reason, or error).
	FolderOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treedrive",
		Name:      "folder_operations_total",
		Help:      "Folder operations by operation and result.",
	}, []string{"op", "result"})

	// CascadeDeleted counts records removed by cascading folder deletes.
	CascadeDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treedrive",
		Name:      "cascade_deleted_total",
		Help:      "Folders and files removed by cascading deletes.",
	}, []string{"kind"})

	// BlobDeleteFailures counts blobs that could not be removed after their metadata was deleted.
	BlobDeleteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "treedrive",
		Name:      "blob_delete_failures_total",
		Help:      "Blob removals that failed and left an orphaned object behind.",
	})

	// TreeCorruption counts traversals that found a folder twice.
	TreeCorruption = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "treedrive",
		Name:      "tree_corruption_total",
		Help:      "Subtree traversals aborted because the parent graph contains a cycle.",
	})

	initOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			FolderOperations,
			CascadeDeleted,
			BlobDeleteFailures,
			TreeCorruption,
		)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
