package observability

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := vec.WithLabelValues(labels...).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestHTTPObserve(t *testing.T) {
	m := HTTP()
	before := counterValue(t, m.errors, "/v1/channels", "GET", "404")
	m.Observe("/v1/channels", "GET", 404, 5*time.Millisecond)
	if got := counterValue(t, m.errors, "/v1/channels", "GET", "404"); got != before+1 {
		t.Fatalf("expected error counter to increase, got %v", got)
	}
	if got := counterValue(t, m.requests, "/v1/channels", "GET", "error"); got < 1 {
		t.Fatalf("expected request counter, got %v", got)
	}
	m.RecordThrottle("")
	if got := counterValue(t, m.throttles, "unspecified"); got < 1 {
		t.Fatalf("expected throttle counter, got %v", got)
	}
}

func TestOperationsObserve(t *testing.T) {
	m := Operations()
	m.Observe("content.collect", nil, time.Millisecond)
	m.Observe("content.collect", errors.New("boom"), time.Millisecond)
	if got := counterValue(t, m.executed, "content.collect", "committed"); got < 1 {
		t.Fatalf("committed not recorded: %v", got)
	}
	if got := counterValue(t, m.executed, "content.collect", "reverted"); got < 1 {
		t.Fatalf("reverted not recorded: %v", got)
	}

	var nilMetrics *operationMetrics
	nilMetrics.Observe("noop", nil, 0)
}

func TestEventsRecord(t *testing.T) {
	m := Events()
	before := counterValue(t, m.emitted, "unknown")
	m.Record("  ")
	if got := counterValue(t, m.emitted, "unknown"); got != before+1 {
		t.Fatalf("expected blank type to count as unknown, got %v", got)
	}
}

func TestEventsRecordLossAndDrops(t *testing.T) {
	m := Events()
	before := counterValue(t, m.lost, "content.collected")
	m.RecordLost("content.collected")
	if got := counterValue(t, m.lost, "content.collected"); got != before+1 {
		t.Fatalf("expected lost counter to increase, got %v", got)
	}

	metric := &dto.Metric{}
	if err := m.dropped.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	dropped := metric.GetCounter().GetValue()
	m.RecordStreamDrop()
	if err := m.dropped.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != dropped+1 {
		t.Fatalf("expected drop counter to increase, got %v", got)
	}

	var nilMetrics *eventMetrics
	nilMetrics.RecordLost("x")
	nilMetrics.RecordStreamDrop()
}
