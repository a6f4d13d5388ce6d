package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/S-Corkum/embedding-gateway/internal/api"
	"github.com/S-Corkum/embedding-gateway/internal/config"
	"github.com/S-Corkum/embedding-gateway/internal/services"
	"github.com/S-Corkum/embedding-gateway/pkg/embedding"
	"github.com/S-Corkum/embedding-gateway/pkg/index"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Command-line flags
var (
	configPath  = flag.String("config", "", "Path to a YAML configuration file")
	healthCheck = flag.Bool("health-check", false, "Run health check against the running server and exit")
)

func main() {
	flag.Parse()

	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *healthCheck {
		if err := runHealthCheck(fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port), 5*time.Second); err != nil {
			log.Printf("Health check failed: %v", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	logger := observability.NewLoggerWithConfig("server", cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server terminated", map[string]interface{}{"error": err.Error()})
	}
}

// run wires the components and serves until ctx is cancelled
func run(ctx context.Context, cfg *config.Config, logger observability.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer shutdownTracing()

	metrics := observability.NewMetricsClient(cfg.Metrics)
	defer func() {
		_ = metrics.Close()
	}()

	service, err := buildService(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server, service, logger.WithPrefix("api"), metrics)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve on %s: %w", server.Addr(), err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", map[string]interface{}{"error": err.Error()})
		return err
	}

	logger.Info("Server stopped gracefully", nil)
	return nil
}

// buildService constructs the embedder and index client from configuration
func buildService(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.MetricsClient) (*services.TextService, error) {
	embedder, err := embedding.New(ctx, cfg.Embedding, logger.WithPrefix("embedding"), metrics)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	client, err := index.New(cfg.Index, logger.WithPrefix("index"), metrics)
	if err != nil {
		return nil, fmt.Errorf("create index client: %w", err)
	}

	logger.Info("Components initialized", map[string]interface{}{
		"embedding_provider":  embedder.Name(),
		"embedding_model":     embedder.Model(),
		"embedding_dimension": embedder.Dimension(),
		"index_provider":      client.Name(),
	})

	return services.NewTextService(embedder, client, logger,
		services.WithIndexDefaults(cfg.Index.DefaultDimension, cfg.Index.DefaultMetric),
	), nil
}

// runHealthCheck probes the health endpoint of a running server
func runHealthCheck(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
