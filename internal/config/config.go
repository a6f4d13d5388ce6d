package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/S-Corkum/embedding-gateway/internal/api"
	"github.com/S-Corkum/embedding-gateway/pkg/embedding"
	"github.com/S-Corkum/embedding-gateway/pkg/index"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// ConfigName is the base name of the optional configuration file
const ConfigName = "embedding-gateway"

// EnvPrefix prefixes the environment variable of every configuration key
const EnvPrefix = "EMBEDDING_GATEWAY"

// Config holds the complete application configuration
type Config struct {
	Server    api.Config                  `mapstructure:"server"`
	Logging   observability.LoggingConfig `mapstructure:"logging"`
	Metrics   observability.MetricsConfig `mapstructure:"metrics"`
	Tracing   observability.TracingConfig `mapstructure:"tracing"`
	Embedding embedding.Config            `mapstructure:"embedding"`
	Index     index.Config                `mapstructure:"index"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path searches
// ./configs, the working directory and /etc/embedding-gateway for
// embedding-gateway.yaml; a missing file is not an error there, but an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/embedding-gateway")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Embedding.Provider = normalizeProvider(cfg.Embedding.Provider)
	cfg.Index.Provider = normalizeProvider(cfg.Index.Provider)
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = cfg.Server.Environment
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	server := api.DefaultConfig()
	v.SetDefault("server.port", server.Port)
	v.SetDefault("server.environment", server.Environment)
	v.SetDefault("server.read_timeout", server.ReadTimeout)
	v.SetDefault("server.write_timeout", server.WriteTimeout)
	v.SetDefault("server.idle_timeout", server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", server.ShutdownTimeout)
	v.SetDefault("server.enable_cors", server.EnableCORS)
	v.SetDefault("server.enable_swagger", server.EnableSwagger)
	v.SetDefault("server.rate_limit.enabled", server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_second", server.RateLimit.RequestsPerSecond)
	v.SetDefault("server.rate_limit.burst", server.RateLimit.Burst)
	v.SetDefault("server.rate_limit.expiration", server.RateLimit.Expiration)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "embedding_gateway")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "embedding-gateway")
	v.SetDefault("tracing.endpoint", "localhost:4317")

	v.SetDefault("embedding.provider", embedding.ProviderProcess)
	// Empty lets each provider pick its own model
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.timeout", time.Duration(0))
	v.SetDefault("embedding.process.command", "python3")
	v.SetDefault("embedding.process.args", []string{})
	v.SetDefault("embedding.process.script", "")
	v.SetDefault("embedding.http.endpoint", "")
	v.SetDefault("embedding.http.api_key", "")
	v.SetDefault("embedding.bedrock.region", "us-east-1")

	v.SetDefault("index.provider", index.ProviderPinecone)
	v.SetDefault("index.timeout", time.Duration(0))
	v.SetDefault("index.default_dimension", 384)
	v.SetDefault("index.default_metric", index.MetricCosine)
	v.SetDefault("index.pinecone.api_key", "")
	v.SetDefault("index.pinecone.controller_url", "https://api.pinecone.io")
	v.SetDefault("index.pinecone.api_version", "2024-07")
	v.SetDefault("index.pinecone.cloud", "aws")
	v.SetDefault("index.pinecone.region", "us-east-1")
	v.SetDefault("index.qdrant.endpoint", "http://localhost:6333")
	v.SetDefault("index.qdrant.api_key", "")
}

// envAliases are the conventional variable names accepted next to the
// prefixed form of each key
var envAliases = []struct{ key, name string }{
	{"server.port", "PORT"},
	{"server.environment", "ENVIRONMENT"},

	{"logging.level", "LOG_LEVEL"},
	{"logging.format", "LOG_FORMAT"},

	{"tracing.enabled", "TRACING_ENABLED"},
	{"tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT"},

	{"embedding.provider", "EMBEDDING_PROVIDER"},
	{"embedding.model", "EMBEDDING_MODEL"},
	{"embedding.dimension", "EMBEDDING_DIMENSION"},
	{"embedding.process.command", "EMBEDDING_COMMAND"},
	{"embedding.process.script", "EMBEDDING_SCRIPT"},
	{"embedding.http.endpoint", "EMBEDDING_ENDPOINT"},
	{"embedding.http.api_key", "EMBEDDING_API_KEY"},
	{"embedding.bedrock.region", "AWS_REGION"},

	{"index.provider", "INDEX_PROVIDER"},
	{"index.pinecone.api_key", "PINECONE_API_KEY"},
	{"index.qdrant.endpoint", "QDRANT_ENDPOINT"},
	{"index.qdrant.api_key", "QDRANT_API_KEY"},
}

func bindEnvVars(v *viper.Viper) {
	// Every key is reachable as EMBEDDING_GATEWAY_<KEY>, e.g.
	// EMBEDDING_GATEWAY_SERVER_PORT. Explicit names replace the prefixed one
	// in viper, so aliased keys bind both and the prefixed name wins.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, alias := range envAliases {
		_ = v.BindEnv(alias.key, prefixedEnvName(alias.key), alias.name)
	}
}

// normalizeProvider matches the case-insensitive lookup of the factories
func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func prefixedEnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate checks the values the server cannot start without
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Index.DefaultDimension <= 0 {
		return fmt.Errorf("index default dimension must be positive, got %d", cfg.Index.DefaultDimension)
	}
	if !index.IsValidMetric(cfg.Index.DefaultMetric) {
		return fmt.Errorf("unknown index default metric %q", cfg.Index.DefaultMetric)
	}

	switch normalizeProvider(cfg.Embedding.Provider) {
	case embedding.ProviderProcess, embedding.ProviderHash, embedding.ProviderBedrock:
	case embedding.ProviderHTTP:
		if cfg.Embedding.HTTP.Endpoint == "" {
			return fmt.Errorf("embedding provider %q requires embedding.http.endpoint", cfg.Embedding.Provider)
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	switch normalizeProvider(cfg.Index.Provider) {
	case index.ProviderPinecone:
		if cfg.Index.Pinecone.APIKey == "" {
			return fmt.Errorf("index provider pinecone requires PINECONE_API_KEY")
		}
	case index.ProviderQdrant:
		if cfg.Index.Qdrant.Endpoint == "" {
			return fmt.Errorf("index provider qdrant requires index.qdrant.endpoint")
		}
	default:
		return fmt.Errorf("unknown index provider %q", cfg.Index.Provider)
	}
	return nil
}
