package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type operationMetrics struct {
	executed *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics

	operationMetricsOnce sync.Once
	operationRegistry    *operationMetrics
)

// HTTP returns the lazily-initialised registry recording API activity.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route, method and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "channeld",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			httpRegistry.requests,
			httpRegistry.errors,
			httpRegistry.latency,
			httpRegistry.throttles,
		)
	})
	return httpRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *httpMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Operations returns the registry recording host-executed state transitions.
func Operations() *operationMetrics {
	operationMetricsOnce.Do(func() {
		operationRegistry = &operationMetrics{
			executed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "host",
				Name:      "operations_total",
				Help:      "State transitions executed by the host segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "channeld",
				Subsystem: "host",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing and committing a state transition.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(operationRegistry.executed, operationRegistry.latency)
	})
	return operationRegistry
}

// Observe records one executed operation. A nil err counts as committed.
func (m *operationMetrics) Observe(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	m.executed.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}
