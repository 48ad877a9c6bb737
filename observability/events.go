package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	lost    *prometheus.CounterVec
	dropped prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured channel events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			lost: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "events",
				Name:      "lost_total",
				Help:      "Committed events the event log failed to persist, segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "channeld",
				Subsystem: "events",
				Name:      "stream_dropped_total",
				Help:      "Records skipped for live subscribers whose buffer was full.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.lost, eventRegistry.dropped)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordLost counts a committed event that never reached the event log.
func (m *eventMetrics) RecordLost(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.lost.WithLabelValues(normalized).Inc()
}

// RecordStreamDrop counts a record a live subscriber did not receive.
func (m *eventMetrics) RecordStreamDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
