package api

import (
	"strconv"
	"time"
)

// Config holds configuration for the API server
type Config struct {
	Port            int             `mapstructure:"port"`
	Environment     string          `mapstructure:"environment"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	EnableCORS      bool            `mapstructure:"enable_cors"`
	EnableSwagger   bool            `mapstructure:"enable_swagger"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Expiration        time.Duration `mapstructure:"expiration"`
}

// ListenAddress returns the address the HTTP server binds to
func (c Config) ListenAddress() string {
	return ":" + strconv.Itoa(c.Port)
}

// IsProduction reports whether internal details should be hidden from clients
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Port:            3000,
		Environment:     "development",
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		EnableCORS:      true,
		EnableSwagger:   true,
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 20,
			Burst:             40,
			Expiration:        10 * time.Minute,
		},
	}
}
