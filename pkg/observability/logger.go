package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StandardLogger is the default Logger implementation, backed by zerolog
type StandardLogger struct {
	prefix string
	level  LogLevel
	zl     zerolog.Logger
	fields map[string]interface{}
}

// NewLogger creates a JSON logger writing to stdout at INFO level
func NewLogger(prefix string) Logger {
	return NewStandardLogger(prefix)
}

// NewStandardLogger creates a new StandardLogger with the given prefix
func NewStandardLogger(prefix string) Logger {
	return newStandardLogger(prefix, LogLevelInfo, os.Stdout, "json")
}

// NewLoggerWithConfig creates a logger honouring the configured level and format
func NewLoggerWithConfig(prefix string, cfg LoggingConfig) Logger {
	return NewLoggerWithWriter(prefix, cfg, os.Stdout)
}

// NewLoggerWithWriter is NewLoggerWithConfig with an explicit destination
func NewLoggerWithWriter(prefix string, cfg LoggingConfig, w io.Writer) Logger {
	return newStandardLogger(prefix, ParseLogLevel(cfg.Level), w, cfg.Format)
}

func newStandardLogger(prefix string, level LogLevel, w io.Writer, format string) *StandardLogger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &StandardLogger{
		prefix: prefix,
		level:  level,
		zl:     zl.Level(toZerologLevel(level)),
	}
}

// ParseLogLevel maps a configuration string to a LogLevel, defaulting to INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "FATAL":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithLevel returns a new logger with the specified log level
func (l *StandardLogger) WithLevel(level LogLevel) *StandardLogger {
	return &StandardLogger{
		prefix: l.prefix,
		level:  level,
		zl:     l.zl.Level(toZerologLevel(level)),
		fields: l.fields,
	}
}

// Debug logs a debug message
func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields)
}

// Info logs an info message
func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields)
}

// Warn logs a warning message
func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields)
}

// Error logs an error message
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LogLevelError, msg, fields)
}

// Fatal logs a fatal message and exits
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.log(LogLevelFatal, msg, fields)
	os.Exit(1)
}

// WithPrefix returns a new logger with the given prefix
func (l *StandardLogger) WithPrefix(prefix string) Logger {
	return &StandardLogger{
		prefix: prefix,
		level:  l.level,
		zl:     l.zl,
		fields: l.fields,
	}
}

// With returns a logger that adds the given fields to every entry
func (l *StandardLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StandardLogger{
		prefix: l.prefix,
		level:  l.level,
		zl:     l.zl,
		fields: merged,
	}
}

func (l *StandardLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	// WithLevel does not exit on fatal; Fatal/Fatalf handle that
	event := l.zl.WithLevel(toZerologLevel(level))
	if event == nil {
		return
	}
	if l.prefix != "" {
		event = event.Str("component", l.prefix)
	}
	if len(l.fields) > 0 {
		event = event.Fields(l.fields)
	}
	if len(fields) > 0 {
		event = event.Fields(normalizeFields(fields))
	}
	event.Msg(msg)
}

// normalizeFields turns error values into strings so they serialize readably
func normalizeFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok && err != nil {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

// Debugf logs a formatted debug message
func (l *StandardLogger) Debugf(format string, args ...interface{}) {
	l.log(LogLevelDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *StandardLogger) Infof(format string, args ...interface{}) {
	l.log(LogLevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *StandardLogger) Warnf(format string, args ...interface{}) {
	l.log(LogLevelWarn, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *StandardLogger) Errorf(format string, args ...interface{}) {
	l.log(LogLevelError, fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a formatted fatal message and exits
func (l *StandardLogger) Fatalf(format string, args ...interface{}) {
	l.log(LogLevelFatal, fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}
