package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway request metrics
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babel_gateway_requests_total",
			Help: "Total number of AI gateway requests",
		},
		[]string{"task", "status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "babel_gateway_request_duration_seconds",
			Help:    "Duration of AI gateway requests in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"task", "status"},
	)

	gatewayRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "babel_gateway_request_size_bytes",
			Help:    "Size of AI gateway request bodies in bytes",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 50000},
		},
		[]string{"task"},
	)

	// Upstream model metrics
	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "babel_gateway_upstream_duration_seconds",
			Help:    "Duration of model provider calls in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"engine", "outcome"},
	)
)

// MetricsCollector records gateway metrics for one model engine.
type MetricsCollector struct {
	engine string
}

// NewMetricsCollector creates a collector labelled with engine.
func NewMetricsCollector(engine string) *MetricsCollector {
	if engine == "" {
		engine = "none"
	}
	return &MetricsCollector{engine: engine}
}

// RecordRequest records one gateway request and its final status.
func (mc *MetricsCollector) RecordRequest(task string, status int, duration time.Duration, requestSize int) {
	if task == "" {
		task = "unknown"
	}
	code := strconv.Itoa(status)
	gatewayRequestsTotal.WithLabelValues(task, code).Inc()
	gatewayRequestDuration.WithLabelValues(task, code).Observe(duration.Seconds())
	gatewayRequestSize.WithLabelValues(task).Observe(float64(requestSize))
}

// RecordUpstreamCall records one model provider call.
func (mc *MetricsCollector) RecordUpstreamCall(duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	upstreamCallDuration.WithLabelValues(mc.engine, outcome).Observe(duration.Seconds())
}
