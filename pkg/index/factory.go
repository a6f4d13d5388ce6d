package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Backend names accepted by New
const (
	ProviderPinecone = "pinecone"
	ProviderQdrant   = "qdrant"
)

// Config selects and configures the index backend
type Config struct {
	Provider         string         `mapstructure:"provider"`
	Timeout          time.Duration  `mapstructure:"timeout"`
	DefaultDimension int            `mapstructure:"default_dimension"`
	DefaultMetric    string         `mapstructure:"default_metric"`
	Pinecone         PineconeConfig `mapstructure:"pinecone"`
	Qdrant           QdrantConfig   `mapstructure:"qdrant"`
}

// New builds the configured backend wrapped with logging, metrics and tracing
func New(cfg Config, logger observability.Logger, metrics observability.MetricsClient) (Client, error) {
	var (
		base Client
		err  error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderPinecone:
		base, err = NewPineconeClient(cfg.Pinecone)
	case ProviderQdrant:
		base, err = NewQdrantClient(cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unknown index provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumented(base, cfg.Timeout, logger, metrics), nil
}
