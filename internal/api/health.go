package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// @Summary API documentation
// @Tags health
// @Produce json
// @Success 200 {object} object "Service description and endpoint map"
// @Router / [get]
func (s *Server) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "embedding-gateway",
		"version":     Version,
		"description": "Text embedding and vector search gateway",
		"embedding": gin.H{
			"provider":  s.service.Embedder().Name(),
			"model":     s.service.Embedder().Model(),
			"dimension": s.service.Embedder().Dimension(),
		},
		"indexBackend": s.service.IndexBackend(),
		"endpoints": gin.H{
			"GET /":                           "API documentation",
			"GET /health":                     "Liveness check",
			"GET /test-pinecone":              "Index backend connectivity check",
			"POST /add-text":                  "Embed and store one text: {indexName, text, metadata?, id?}",
			"POST /query-text":                "Similarity search by text: {indexName, text, topK?, includeMetadata?}",
			"POST /add-multiple-texts":        "Embed and store many texts: {indexName, texts: [string | {text, metadata?, id?}]}",
			"GET /list-indexes":               "List collections",
			"POST /create-index":              "Create a collection: {indexName, dimension?, metric?}",
			"GET /index-stats/:indexName":     "Collection statistics",
			"DELETE /delete-index/:indexName": "Delete a collection",
			"GET /openapi.yaml":               "OpenAPI document",
		},
	})
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} object "Service is up"
// @Router /health [get]
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Embedding gateway is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// @Summary Index backend connectivity
// @Tags health
// @Produce json
// @Success 200 {object} object "Backend reachable"
// @Failure 500 {object} ErrorResponse "Backend unreachable"
// @Router /test-pinecone [get]
func (s *Server) testBackendHandler(c *gin.Context) {
	count, err := s.service.CheckBackend(c.Request.Context())
	if err != nil {
		respondError(c, s.logger, "TestBackend", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     statusSuccess,
		"message":    fmt.Sprintf("Connected to %s", s.service.IndexBackend()),
		"indexCount": count,
	})
}
