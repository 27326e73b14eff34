// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	ImportsTotal    prometheus.Counter
	RowsImported    prometheus.Counter
	DuplicatesTotal prometheus.Counter
	RuleApplies     prometheus.Counter
	TransfersMarked prometheus.Counter
}

// New registers and returns all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallet",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ImportsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "imports_total",
			Help:      "Number of finalized import sessions.",
		}),
		RowsImported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "rows_imported_total",
			Help:      "Number of transaction rows inserted by imports.",
		}),
		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "duplicate_rows_total",
			Help:      "Number of rows skipped as duplicates during import.",
		}),
		RuleApplies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "rule_applies_total",
			Help:      "Number of transactions tagged by rule apply passes.",
		}),
		TransfersMarked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "transfers_marked_total",
			Help:      "Number of transfer pairs confirmed by users.",
		}),
	}
}

// Middleware records request duration per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Serve starts the metrics endpoint on its own port. Blocks until the
// listener fails, so run it in a goroutine.
func Serve(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}
