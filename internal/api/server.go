package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/S-Corkum/embedding-gateway/internal/services"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// Server represents the API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	config  Config
	service *services.TextService
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewServer creates a new API server
func NewServer(cfg Config, service *services.TextService, logger observability.Logger, metrics observability.MetricsClient) *Server {
	if logger == nil {
		logger = observability.NewLogger("api")
	}
	if metrics == nil {
		metrics = observability.NewNoOpMetricsClient()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(CustomRecoveryMiddleware(logger, cfg.IsProduction()))
	router.Use(RequestID())
	router.Use(RequestLogger(logger))
	router.Use(MetricsMiddleware(metrics))
	router.Use(TracingMiddleware())

	if cfg.EnableCORS {
		router.Use(CORSMiddleware())
	}
	if cfg.RateLimit.Enabled {
		router.Use(RateLimiter(NewRateLimiterStorage(cfg.RateLimit)))
	}

	s := &Server{
		router:  router,
		config:  cfg,
		service: service,
		logger:  logger,
		metrics: metrics,
		server: &http.Server{
			Addr:         cfg.ListenAddress(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
	s.setupRoutes()
	return s
}

// setupRoutes initializes all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.rootHandler)
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/test-pinecone", s.testBackendHandler)

	NewTextAPI(s.service, s.logger.WithPrefix("text_api")).RegisterRoutes(s.router)
	NewIndexAPI(s.service, s.logger.WithPrefix("index_api")).RegisterRoutes(s.router)

	if handler := s.metrics.Handler(); handler != nil {
		s.router.GET("/metrics", gin.WrapH(handler))
	}
	if s.config.EnableSwagger {
		SetupSwaggerDocs(s.router)
	}

	s.router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route "+c.Request.Method+" "+c.Request.URL.Path+" not found")
	})
	s.router.NoMethod(func(c *gin.Context) {
		abortWithError(c, http.StatusMethodNotAllowed, "Method "+c.Request.Method+" not allowed on "+c.Request.URL.Path)
	})
}

// Handler returns the HTTP handler, for tests and embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the API server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server listening", map[string]interface{}{
		"address":       s.server.Addr,
		"environment":   s.config.Environment,
		"index_backend": s.service.IndexBackend(),
		"embedder":      s.service.Embedder().Name(),
	})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
