// Package observability provides unified observability functionality for the gateway.
// It consolidates logging, metrics, and tracing into a cohesive interface.
package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds the configuration for tracing
type TracingConfig struct {
	// Enabled indicates whether tracing is enabled
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name,omitempty" mapstructure:"service_name"`
	Environment string `json:"environment,omitempty" mapstructure:"environment"`
	Endpoint    string `json:"endpoint,omitempty" mapstructure:"endpoint"`
}

// MetricsConfig holds the configuration for metrics
type MetricsConfig struct {
	// Enabled indicates whether metrics collection is enabled
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace,omitempty" mapstructure:"namespace"`
}

// LoggingConfig holds the configuration for logging
type LoggingConfig struct {
	// Level is the minimum log level to emit
	Level string `json:"level,omitempty" mapstructure:"level"`
	// Format is either "json" or "console"
	Format string `json:"format,omitempty" mapstructure:"format"`
}

// LogLevel defines log message severity
type LogLevel string

// Log levels
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger defines the interface for logging
type Logger interface {
	// Core logging methods with fields
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	// Formatted logging methods
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// Context methods
	WithPrefix(prefix string) Logger
	With(fields map[string]interface{}) Logger
}

// MetricsClient defines the interface for metrics collection
type MetricsClient interface {
	// RecordOperation records the outcome and latency of a call into an
	// external collaborator (embedding model, vector index).
	RecordOperation(component string, operation string, success bool, durationSeconds float64)
	// RecordAPIRequest records one served HTTP request.
	RecordAPIRequest(method string, endpoint string, status int, durationSeconds float64)

	// Handler exposes the collected metrics, or nil when metrics are disabled.
	Handler() http.Handler

	// Lifecycle management
	Close() error
}

// Span represents a trace span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	AddEvent(name string, attributes map[string]interface{})
	RecordError(err error)
	SetStatus(code int, description string)
	SpanContext() trace.SpanContext
}

// Tracer starts spans. OtelTracer is the production implementation and
// NoopTracer discards everything.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}
