package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID assigns every request an id, reusing the caller's X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger middleware logs HTTP requests
func RequestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": requestID(c),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields)
		default:
			logger.Info("Request served", fields)
		}
	}
}

// MetricsMiddleware collects API metrics
func MetricsMiddleware(metrics observability.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// RateLimiterStorage provides storage for rate limiting
type RateLimiterStorage struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	expiry   map[string]time.Time
	config   RateLimitConfig
	now      func() time.Time
}

// NewRateLimiterStorage creates a new rate limiter storage
func NewRateLimiterStorage(config RateLimitConfig) *RateLimiterStorage {
	if config.Expiration <= 0 {
		config.Expiration = 10 * time.Minute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiterStorage{
		limiters: make(map[string]*rate.Limiter),
		expiry:   make(map[string]time.Time),
		config:   config,
		now:      time.Now,
	}
}

// GetLimiter returns a rate limiter for a given key
func (s *RateLimiterStorage) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if limiter, exists := s.limiters[key]; exists && now.Before(s.expiry[key]) {
		s.expiry[key] = now.Add(s.config.Expiration)
		return limiter
	}

	// Sweep expired entries while the lock is held
	for k, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.limiters, k)
			delete(s.expiry, k)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)
	s.limiters[key] = limiter
	s.expiry[key] = now.Add(s.config.Expiration)
	return limiter
}

// Len returns the number of tracked clients
func (s *RateLimiterStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter middleware implements per-client rate limiting
func RateLimiter(storage *RateLimiterStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !storage.GetLimiter(c.ClientIP()).Allow() {
			abortWithError(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// CORSMiddleware enables Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
