package index

import (
	"context"
	"time"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Instrumented decorates a Client with spans, metrics and logging
type Instrumented struct {
	next    Client
	timeout time.Duration
	logger  observability.Logger
	metrics observability.MetricsClient
	tracer  observability.Tracer
}

// NewInstrumented wraps next. A zero timeout leaves the caller's deadline alone.
func NewInstrumented(next Client, timeout time.Duration, logger observability.Logger, metrics observability.MetricsClient) *Instrumented {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoOpMetricsClient()
	}
	return &Instrumented{
		next:    next,
		timeout: timeout,
		logger:  logger.WithPrefix("index"),
		metrics: metrics,
		tracer:  observability.OtelTracer{},
	}
}

// WithTracer replaces the tracer spans are started from
func (c *Instrumented) WithTracer(tracer observability.Tracer) *Instrumented {
	if tracer != nil {
		c.tracer = tracer
	}
	return c
}

// Name returns the wrapped backend name
func (c *Instrumented) Name() string { return c.next.Name() }

// Unwrap returns the decorated Client
func (c *Instrumented) Unwrap() Client { return c.next }

func (c *Instrumented) observe(ctx context.Context, op, collection string, call func(ctx context.Context) error) error {
	ctx, span := c.tracer.StartSpan(ctx, "index."+op)
	defer span.End()
	span.SetAttribute(string(observability.IndexOperationAttributeKey), op)
	if collection != "" {
		span.SetAttribute(string(observability.IndexNameAttributeKey), collection)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := call(ctx)
	elapsed := time.Since(start)

	c.metrics.RecordOperation("index", op, err == nil, elapsed.Seconds())

	fields := map[string]interface{}{
		"backend":     c.next.Name(),
		"operation":   op,
		"duration_ms": elapsed.Milliseconds(),
	}
	if collection != "" {
		fields["index"] = collection
	}
	if err != nil {
		span.RecordError(err)
		fields["error"] = err.Error()
		c.logger.Warn("Index operation failed", fields)
		return err
	}
	c.logger.Debug("Index operation completed", fields)
	return nil
}

// ListCollections implements Client
func (c *Instrumented) ListCollections(ctx context.Context) ([]CollectionDescriptor, error) {
	var out []CollectionDescriptor
	err := c.observe(ctx, "list_collections", "", func(ctx context.Context) error {
		var err error
		out, err = c.next.ListCollections(ctx)
		return err
	})
	return out, err
}

// CreateCollection implements Client
func (c *Instrumented) CreateCollection(ctx context.Context, req CreateRequest) error {
	return c.observe(ctx, "create_collection", req.Name, func(ctx context.Context) error {
		return c.next.CreateCollection(ctx, req)
	})
}

// Upsert implements Client
func (c *Instrumented) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	var n int
	err := c.observe(ctx, "upsert", collection, func(ctx context.Context) error {
		var err error
		n, err = c.next.Upsert(ctx, collection, records)
		return err
	})
	return n, err
}

// Query implements Client
func (c *Instrumented) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	var out []Match
	err := c.observe(ctx, "query", collection, func(ctx context.Context) error {
		var err error
		out, err = c.next.Query(ctx, collection, req)
		return err
	})
	return out, err
}

// DescribeStats implements Client
func (c *Instrumented) DescribeStats(ctx context.Context, collection string) (*Stats, error) {
	var out *Stats
	err := c.observe(ctx, "describe_stats", collection, func(ctx context.Context) error {
		var err error
		out, err = c.next.DescribeStats(ctx, collection)
		return err
	})
	return out, err
}

// DeleteCollection implements Client
func (c *Instrumented) DeleteCollection(ctx context.Context, name string) error {
	return c.observe(ctx, "delete_collection", name, func(ctx context.Context) error {
		return c.next.DeleteCollection(ctx, name)
	})
}
