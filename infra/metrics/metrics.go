package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservations_total",
			Help: "Reservation operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	LowStockEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_low_stock_events_total",
			Help: "Low stock notifications delivered",
		},
	)
	ConsistencyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_consistency_errors_total",
			Help: "Ledger invariant violations detected",
		},
	)
)

// NormalizePath keeps the label cardinality bounded: route templates stay as
// is, unmatched paths collapse to their first segment.
func NormalizePath(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	p := strings.TrimPrefix(c.Request.URL.Path, "/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

func Middleware(c *gin.Context) {
	if c.Request.URL.Path == "/metrics" {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()
	duration := time.Since(start).Seconds()
	path := NormalizePath(c)
	status := strconv.Itoa(c.Writer.Status())
	RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
}
