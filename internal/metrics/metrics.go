package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagehost"

var (
	// RequestsTotal counts HTTP requests by method, route and status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// UploadsTotal counts upload pipeline runs by outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total image uploads",
		},
		[]string{"status"},
	)

	// UploadBytesTotal sums the size of stored uploads.
	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes written by successful uploads",
		},
	)

	// ObjectStoreOps counts object store calls by operation and outcome.
	ObjectStoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_store_operations_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"},
	)

	// NotificationsTotal counts queue sends and topic publishes.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total notification attempts",
		},
		[]string{"target", "status"},
	)

	// DrainedTotal counts queue messages handled by the drain worker.
	DrainedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_drained_total",
			Help:      "Queue messages processed by the drain worker",
		},
		[]string{"outcome"},
	)

	// DataConsistent reports the result of the last reconciliation (1 consistent, 0 drift).
	DataConsistent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_consistent",
			Help:      "Result of the last consistency check",
		},
	)

	registerOnce sync.Once
)

// InitMetrics registers every collector with the default registry.
// Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			UploadsTotal,
			UploadBytesTotal,
			ObjectStoreOps,
			NotificationsTotal,
			DrainedTotal,
			DataConsistent,
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
		method := c.Request.Method
		RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// RecordUpload records one upload pipeline outcome.
func RecordUpload(status string, bytes int64) {
	UploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		UploadBytesTotal.Add(float64(bytes))
	}
}

// RecordObjectStore records one object store call.
func RecordObjectStore(operation string, err error) {
	ObjectStoreOps.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordNotification records one queue send or topic publish.
func RecordNotification(target string, err error) {
	NotificationsTotal.WithLabelValues(target, outcome(err)).Inc()
}

// RecordDrained records how the drain worker disposed of one message.
func RecordDrained(result string) {
	DrainedTotal.WithLabelValues(result).Inc()
}

// RecordConsistency stores the latest reconciliation result.
func RecordConsistency(consistent bool) {
	if consistent {
		DataConsistent.Set(1)
		return
	}
	DataConsistent.Set(0)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
