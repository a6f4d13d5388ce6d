package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// NoopLogger is a logger that does nothing
type NoopLogger struct{}

// NewNoopLogger creates a new NoopLogger
func NewNoopLogger() Logger {
	return &NoopLogger{}
}

// Debug implements Logger.Debug
func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}

// Info implements Logger.Info
func (l *NoopLogger) Info(msg string, fields map[string]interface{}) {}

// Warn implements Logger.Warn
func (l *NoopLogger) Warn(msg string, fields map[string]interface{}) {}

// Error implements Logger.Error
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}

// Fatal implements Logger.Fatal
func (l *NoopLogger) Fatal(msg string, fields map[string]interface{}) {}

// Debugf implements Logger.Debugf
func (l *NoopLogger) Debugf(format string, args ...interface{}) {}

// Infof implements Logger.Infof
func (l *NoopLogger) Infof(format string, args ...interface{}) {}

// Warnf implements Logger.Warnf
func (l *NoopLogger) Warnf(format string, args ...interface{}) {}

// Errorf implements Logger.Errorf
func (l *NoopLogger) Errorf(format string, args ...interface{}) {}

// Fatalf implements Logger.Fatalf
func (l *NoopLogger) Fatalf(format string, args ...interface{}) {}

// WithPrefix implements Logger.WithPrefix
func (l *NoopLogger) WithPrefix(prefix string) Logger {
	return l
}

// With implements Logger.With
func (l *NoopLogger) With(fields map[string]interface{}) Logger {
	return l
}

// NoopSpan is a no-op implementation of the Span interface
type NoopSpan struct{}

// End is a no-op implementation
func (s *NoopSpan) End() {}

// SetAttribute is a no-op implementation
func (s *NoopSpan) SetAttribute(key string, value interface{}) {}

// AddEvent is a no-op implementation
func (s *NoopSpan) AddEvent(name string, attributes map[string]interface{}) {}

// RecordError is a no-op implementation
func (s *NoopSpan) RecordError(err error) {}

// SetStatus is a no-op implementation
func (s *NoopSpan) SetStatus(code int, description string) {}

// SpanContext is a no-op implementation
func (s *NoopSpan) SpanContext() trace.SpanContext {
	return trace.SpanContext{}
}

// NoopTracer starts NoopSpans
type NoopTracer struct{}

// StartSpan implements Tracer
func (NoopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}
