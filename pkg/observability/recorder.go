package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the otel/metric-based recording interface, an alternate shape
// to the Prometheus-client-direct Metrics type in metrics.go for callers
// that already hold an otel MeterProvider instead of a *prometheus.Registry.
type Metrics interface {
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordMemorySearch(ctx context.Context, duration time.Duration, resultCount int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int)
}

// OtelMetrics implements Metrics on top of otel/metric instruments.
type OtelMetrics struct {
	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	memoryDuration    metric.Float64Histogram
	memorySearchTotal metric.Int64Counter
	memoryResultCount metric.Int64Histogram
	memoryErrorsTotal metric.Int64Counter

	httpRequestsTotal metric.Int64Counter
	httpDuration      metric.Float64Histogram
	httpResponseSize  metric.Int64Histogram
}

// NewOtelMetrics builds an OtelMetrics from pre-created otel/metric instruments.
func NewOtelMetrics(
	toolDuration metric.Float64Histogram,
	toolCallsTotal metric.Int64Counter,
	toolErrorsTotal metric.Int64Counter,
	memoryDuration metric.Float64Histogram,
	memorySearchTotal metric.Int64Counter,
	memoryResultCount metric.Int64Histogram,
	memoryErrorsTotal metric.Int64Counter,
	httpRequestsTotal metric.Int64Counter,
	httpDuration metric.Float64Histogram,
	httpResponseSize metric.Int64Histogram,
) *OtelMetrics {
	return &OtelMetrics{
		toolDuration:      toolDuration,
		toolCallsTotal:    toolCallsTotal,
		toolErrorsTotal:   toolErrorsTotal,
		memoryDuration:    memoryDuration,
		memorySearchTotal: memorySearchTotal,
		memoryResultCount: memoryResultCount,
		memoryErrorsTotal: memoryErrorsTotal,
		httpRequestsTotal: httpRequestsTotal,
		httpDuration:      httpDuration,
		httpResponseSize:  httpResponseSize,
	}
}

// RecordToolExecution records one tools/call dispatch.
func (m *OtelMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("tool", tool)}
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordMemorySearch records one Retrieval Engine pass.
func (m *OtelMetrics) RecordMemorySearch(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if m == nil || m.memoryDuration == nil || m.memorySearchTotal == nil {
		return
	}
	m.memoryDuration.Record(ctx, duration.Seconds())
	m.memorySearchTotal.Add(ctx, 1)
	if m.memoryResultCount != nil {
		m.memoryResultCount.Record(ctx, int64(resultCount))
	}
	if err != nil && m.memoryErrorsTotal != nil {
		m.memoryErrorsTotal.Add(ctx, 1)
	}
}

// RecordHTTPRequest records one inbound HTTP request.
func (m *OtelMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, responseSize int) {
	if m == nil || m.httpRequestsTotal == nil || m.httpDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}
	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if m.httpResponseSize != nil && responseSize > 0 {
		m.httpResponseSize.Record(ctx, int64(responseSize), metric.WithAttributes(attrs...))
	}
}

// SetGlobalMetrics installs the process-wide Metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide Metrics recorder, or a no-op
// implementation if none has been installed.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return &NoopMetrics{}
	}
	return globalMetrics
}
