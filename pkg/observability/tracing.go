package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/S-Corkum/embedding-gateway"

// Span attribute keys shared by the gateway components
const (
	EmbeddingModelAttributeKey    = attribute.Key("embedding.model")
	EmbeddingProviderAttributeKey = attribute.Key("embedding.provider")
	IndexNameAttributeKey         = attribute.Key("index.name")
	IndexOperationAttributeKey    = attribute.Key("index.operation")
)

// otelSpanWrapper wraps an OpenTelemetry span to implement the Span interface
type otelSpanWrapper struct {
	span trace.Span
}

// End implements Span.End
func (o *otelSpanWrapper) End() {
	o.span.End()
}

// SetStatus implements Span.SetStatus. 1 is OK, 2 is error, anything else unset.
func (o *otelSpanWrapper) SetStatus(code int, description string) {
	var statusCode codes.Code
	switch code {
	case 1:
		statusCode = codes.Ok
	case 2:
		statusCode = codes.Error
	default:
		statusCode = codes.Unset
	}
	o.span.SetStatus(statusCode, description)
}

// SetAttribute implements Span.SetAttribute
func (o *otelSpanWrapper) SetAttribute(key string, value interface{}) {
	o.span.SetAttributes(toAttribute(key, value))
}

// AddEvent implements Span.AddEvent
func (o *otelSpanWrapper) AddEvent(name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError implements Span.RecordError
func (o *otelSpanWrapper) RecordError(err error) {
	if err == nil {
		return
	}
	o.span.RecordError(err)
	o.span.SetStatus(codes.Error, err.Error())
}

// SpanContext implements Span.SpanContext
func (o *otelSpanWrapper) SpanContext() trace.SpanContext {
	return o.span.SpanContext()
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

var (
	tracerMu     sync.RWMutex
	globalTracer trace.Tracer = noop.NewTracerProvider().Tracer("")
)

// SetTracerProvider points StartSpan at the given provider
func SetTracerProvider(tp trace.TracerProvider) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = tp.Tracer(tracerName)
}

func getTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	return globalTracer
}

// StartSpan starts a new span and returns the wrapped span and context
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, otelSpan := getTracer().Start(ctx, name)
	return ctx, &otelSpanWrapper{span: otelSpan}
}

// OtelTracer adapts the package-level StartSpan to the Tracer interface
type OtelTracer struct{}

// StartSpan implements Tracer
func (OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return StartSpan(ctx, name)
}

// InitTracing initializes OpenTelemetry tracing with an OTLP gRPC exporter.
// The returned function flushes and shuts the provider down.
func InitTracing(ctx context.Context, cfg TracingConfig, logger Logger) (func(), error) {
	if !cfg.Enabled {
		logger.Info("Tracing is disabled", nil)
		return func() {}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "embedding-gateway"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracerProvider(tracerProvider)

	logger.Info("Tracing initialized", map[string]interface{}{
		"service_name": cfg.ServiceName,
		"environment":  cfg.Environment,
		"endpoint":     cfg.Endpoint,
	})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer provider", map[string]interface{}{"error": err.Error()})
		}
	}, nil
}
