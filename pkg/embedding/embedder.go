// Package embedding turns text into fixed-length vectors. The Embedder
// interface hides whether the model runs in a child process, behind an HTTP
// inference service, on AWS Bedrock, or in-process.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Vector is a dense embedding
type Vector []float32

// Embedder converts a single text into a vector of Dimension() floats
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dimension() int
	Model() string
	Name() string
}

// Provider names accepted by New
const (
	ProviderProcess = "process"
	ProviderHTTP    = "http"
	ProviderBedrock = "bedrock"
	ProviderHash    = "hash"
)

// Models used when Config.Model is empty
const (
	DefaultProcessModel = "all-MiniLM-L6-v2"
	DefaultHTTPModel    = "text-embedding-3-small"
	DefaultBedrockModel = "amazon.titan-embed-text-v2:0"
	DefaultHashModel    = "feature-hash"
)

// Config selects and configures an Embedder
type Config struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Process ProcessConfig `mapstructure:"process"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Bedrock BedrockConfig `mapstructure:"bedrock"`
}

// New builds the configured Embedder wrapped with logging, metrics and tracing
func New(ctx context.Context, cfg Config, logger observability.Logger, metrics observability.MetricsClient) (Embedder, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	var (
		base Embedder
		err  error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderProcess:
		base, err = NewProcessEmbedder(cfg.Model, cfg.Dimension, cfg.Process)
	case ProviderHTTP:
		base, err = NewHTTPEmbedder(cfg.Model, cfg.Dimension, cfg.HTTP)
	case ProviderBedrock:
		base, err = NewBedrockEmbedder(ctx, cfg.Model, cfg.Dimension, cfg.Bedrock)
	case ProviderHash:
		base = NewHashEmbedder(cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewInstrumented(base, cfg.Timeout, logger, metrics), nil
}

// checkText rejects input no model should be asked to embed
func checkText(provider, text string) error {
	if strings.TrimSpace(text) == "" {
		return commonerrors.Embedding(provider+".Embed", "text must not be empty", nil)
	}
	return nil
}

// checkDimension enforces the configured output length
func checkDimension(provider string, v Vector, want int) error {
	if len(v) != want {
		return commonerrors.Embedding(provider+".Embed",
			fmt.Sprintf("model returned %d dimensions, expected %d", len(v), want), nil)
	}
	return nil
}
