package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/propagation"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

const (
	spanStatusOK    = 1
	spanStatusError = 2
)

// TracingMiddleware starts a server span per request, continuing any
// W3C trace context the caller sent
func TracingMiddleware() gin.HandlerFunc {
	propagator := propagation.TraceContext{}

	return func(c *gin.Context) {
		startTime := time.Now()

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := observability.StartSpan(ctx, fmt.Sprintf("%s %s", method, path))
		defer span.End()

		span.SetAttribute("http.method", method)
		span.SetAttribute("http.route", path)
		span.SetAttribute("http.user_agent", c.Request.UserAgent())
		span.SetAttribute("http.client_ip", c.ClientIP())
		span.SetAttribute("request.id", requestID(c))

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttribute("http.status_code", status)
		span.SetAttribute("http.response_size", c.Writer.Size())
		span.SetAttribute("http.duration_ms", time.Since(startTime).Milliseconds())

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				span.RecordError(err.Err)
			}
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(spanStatusError, http.StatusText(status))
		} else {
			span.SetStatus(spanStatusOK, "")
		}
	}
}
