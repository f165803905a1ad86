// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the memory service: spans around embed/search/rerank and
// counters/histograms for tool calls and retrieval latency.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps the OpenTelemetry tracer with sage-specific span helpers
// for the Retrieval Engine, Embedding/Reranker clients, and Tool Server.
type Tracer struct {
	provider       *sdktrace.TracerProvider
	tracer         trace.Tracer
	debugExporter  *DebugExporter
	capturePayload bool
	serviceName    string
}

// TracerOption configures the Tracer.
type TracerOption func(*Tracer)

// WithDebugExporter registers an in-memory span capture for inspection.
func WithDebugExporter(exporter *DebugExporter) TracerOption {
	return func(t *Tracer) {
		t.debugExporter = exporter
	}
}

// WithCapturePayloads enables capturing tool call args/responses in spans.
func WithCapturePayloads(capture bool) TracerOption {
	return func(t *Tracer) {
		t.capturePayload = capture
	}
}

// NewTracer creates a new Tracer from configuration. The OTLP exporter
// uses the HTTP transport (otlptracehttp) rather than gRPC: the gRPC
// stack is one of the teacher dependencies this module drops (see
// DESIGN.md), so tracing export stays on the plain-HTTP OTLP variant
// instead of reintroducing it.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String(AttrGenAISystem, "sage"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplingRate)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Tracer{
		provider:    provider,
		tracer:      provider.Tracer(cfg.ServiceName),
		serviceName: cfg.ServiceName,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.debugExporter != nil {
		provider.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(t.debugExporter))
	}

	return t, nil
}

func createExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp", "jaeger", "zipkin":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartMemorySearch begins a span for one Retrieval Engine pass.
func (t *Tracer) StartMemorySearch(ctx context.Context, query string, maxResults int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMemorySearch,
		trace.WithAttributes(
			attribute.String(AttrSageQuery, query),
			attribute.Int(AttrSageMaxResults, maxResults),
		),
	)
}

// StartMemorySave begins a span for one save_conversation persist.
func (t *Tracer) StartMemorySave(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMemorySave,
		trace.WithAttributes(attribute.String(AttrSageSessionID, sessionID)),
	)
}

// StartToolExecution begins a span for one tools/call dispatch.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution,
		trace.WithAttributes(
			attribute.String(AttrGenAIOperationName, OpToolCall),
			attribute.String(AttrGenAIToolName, toolName),
			attribute.String(AttrGenAIToolCallID, callID),
		),
	)
}

// StartEmbedRequest begins a span for one Embedding Client call.
func (t *Tracer) StartEmbedRequest(ctx context.Context, model string, textLength int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanEmbedRequest,
		trace.WithAttributes(
			attribute.String(AttrGenAIOperationName, OpEmbeddings),
			attribute.String(AttrGenAIRequestModel, model),
			attribute.Int("text_length", textLength),
		),
	)
}

// StartRerankRequest begins a span for one Reranker Client call.
func (t *Tracer) StartRerankRequest(ctx context.Context, candidateCount int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanRerankRequest,
		trace.WithAttributes(
			attribute.String(AttrGenAIOperationName, OpRerank),
			attribute.Int("candidate_count", candidateCount),
		),
	)
}

// AddResultCount records how many results a memory-search span produced.
func (t *Tracer) AddResultCount(span trace.Span, count int) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int(AttrSageResultCount, count))
}

// AddCacheHit records whether a memory-search span was served from cache.
func (t *Tracer) AddCacheHit(span trace.Span, hit bool) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Bool(AttrSageCacheHit, hit))
}

// AddToolPayload adds serialized tool args/response to a span, if capture
// is enabled (spec §4.12's tool calls can carry prompt-shaped text).
func (t *Tracer) AddToolPayload(span trace.Span, args, response string) {
	if span == nil || !t.capturePayload {
		return
	}
	if args != "" {
		span.SetAttributes(attribute.String(AttrSageToolArgs, args))
	}
	if response != "" {
		span.SetAttributes(attribute.String(AttrSageToolResponse, response))
	}
}

// RecordError records an error on a span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String(AttrErrorType, fmt.Sprintf("%T", err)),
		attribute.String(AttrErrorMessage, err.Error()),
	)
}

// DebugExporter returns the debug exporter if configured.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown gracefully shuts down the tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns the process-global OpenTelemetry tracer by name, for
// call sites that don't hold a *Tracer reference.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func noopSpan() trace.Span {
	_, span := trace.NewNoopTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	return span
}
