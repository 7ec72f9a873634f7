// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campushub_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RecordOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_record_operations_total",
		Help: "Table operations by table, operation and outcome.",
	}, []string{"table", "op", "outcome"})

	StorageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_storage_operations_total",
		Help: "Storage operations by bucket, operation and outcome.",
	}, []string{"bucket", "op", "outcome"})

	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_realtime_events_total",
		Help: "Change events published per table.",
	}, []string{"table", "op"})

	DashboardReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_dashboard_reloads_total",
		Help: "Full tab reloads by tab and trigger.",
	}, []string{"tab", "trigger"})

	CleanupJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_cleanup_jobs_total",
		Help: "Storage cleanup jobs by outcome.",
	}, []string{"outcome"})
)

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// GinMiddleware observes request latency keyed by the matched route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
