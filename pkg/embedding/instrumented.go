package embedding

import (
	"context"
	"time"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Instrumented decorates an Embedder with a span, metrics and a debug log
// line per call. It does not retry.
type Instrumented struct {
	next    Embedder
	timeout time.Duration
	logger  observability.Logger
	metrics observability.MetricsClient
	tracer  observability.Tracer
}

// NewInstrumented wraps next. A zero timeout leaves the caller's deadline alone.
func NewInstrumented(next Embedder, timeout time.Duration, logger observability.Logger, metrics observability.MetricsClient) *Instrumented {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoOpMetricsClient()
	}
	return &Instrumented{
		next:    next,
		timeout: timeout,
		logger:  logger.WithPrefix("embedding"),
		metrics: metrics,
		tracer:  observability.OtelTracer{},
	}
}

// WithTracer replaces the tracer spans are started from
func (e *Instrumented) WithTracer(tracer observability.Tracer) *Instrumented {
	if tracer != nil {
		e.tracer = tracer
	}
	return e
}

// Name returns the wrapped provider name
func (e *Instrumented) Name() string { return e.next.Name() }

// Model returns the wrapped model name
func (e *Instrumented) Model() string { return e.next.Model() }

// Dimension returns the wrapped dimension
func (e *Instrumented) Dimension() int { return e.next.Dimension() }

// Unwrap returns the decorated Embedder
func (e *Instrumented) Unwrap() Embedder { return e.next }

// Embed calls the wrapped Embedder
func (e *Instrumented) Embed(ctx context.Context, text string) (Vector, error) {
	ctx, span := e.tracer.StartSpan(ctx, "embedding.embed")
	defer span.End()
	span.SetAttribute(string(observability.EmbeddingProviderAttributeKey), e.next.Name())
	span.SetAttribute(string(observability.EmbeddingModelAttributeKey), e.next.Model())
	span.SetAttribute("text.length", len(text))

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	vector, err := e.next.Embed(ctx, text)
	elapsed := time.Since(start)

	e.metrics.RecordOperation("embedding", e.next.Name(), err == nil, elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		e.logger.Warn("Embedding failed", map[string]interface{}{
			"provider":    e.next.Name(),
			"model":       e.next.Model(),
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		})
		return nil, err
	}

	e.logger.Debug("Embedding computed", map[string]interface{}{
		"provider":    e.next.Name(),
		"model":       e.next.Model(),
		"dimension":   len(vector),
		"duration_ms": elapsed.Milliseconds(),
	})
	return vector, nil
}
