package observability

import (
	"context"
	"testing"
	"time"
)

func TestOtelMetricsRecordToolExecutionNilSafe(t *testing.T) {
	ctx := context.Background()
	metrics := &OtelMetrics{}

	metrics.RecordToolExecution(ctx, "search_memory", 50*time.Millisecond, nil)
	metrics.RecordMemorySearch(ctx, 10*time.Millisecond, 3, nil)
	metrics.RecordHTTPRequest(ctx, "POST", "/rpc", 200, 5*time.Millisecond, 128)
}

func TestNoopMetrics(t *testing.T) {
	ctx := context.Background()
	var metrics Metrics = NoopMetrics{}

	metrics.RecordToolExecution(ctx, "test", 50*time.Millisecond, nil)
	metrics.RecordMemorySearch(ctx, 10*time.Millisecond, 0, nil)
	metrics.RecordHTTPRequest(ctx, "GET", "/health", 200, time.Millisecond, 2)
}

func TestGlobalMetrics(t *testing.T) {
	ctx := context.Background()

	_ = GetGlobalMetrics()

	SetGlobalMetrics(NoopMetrics{})

	retrieved := GetGlobalMetrics()
	if retrieved == nil {
		t.Fatal("expected non-nil metrics after SetGlobalMetrics")
	}
	retrieved.RecordToolExecution(ctx, "get_context", 100*time.Millisecond, nil)
}

func TestPrometheusMetricsRecordsToolAndMemory(t *testing.T) {
	cfg := &MetricsConfig{Enabled: true}
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordToolCall("save_conversation", 10*time.Millisecond)
	m.RecordToolError("save_conversation", "input_invalid")
	m.RecordMemorySearch("factual", 5*time.Millisecond)
	m.RecordMemorySaved("session-1")
	m.RecordCacheResult(true)
	m.RecordCacheResult(false)
	m.RecordHTTPRequest("POST", "/rpc", 200, time.Millisecond, 10, 20)

	if m.Registry() == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestDisabledMetricsConfigReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil Metrics when disabled")
	}
	// Nil-receiver methods must not panic.
	m.RecordToolCall("x", time.Millisecond)
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{200: "2xx", 301: "3xx", 404: "4xx", 500: "5xx", 0: "unknown"}
	for code, want := range cases {
		if got := statusCodeLabel(code); got != want {
			t.Errorf("statusCodeLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
