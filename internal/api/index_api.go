package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/S-Corkum/embedding-gateway/internal/services"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

// IndexAPI handles collection management endpoints
type IndexAPI struct {
	service *services.TextService
	logger  observability.Logger
}

// NewIndexAPI creates a new index API handler
func NewIndexAPI(service *services.TextService, logger observability.Logger) *IndexAPI {
	if logger == nil {
		logger = observability.NewLogger("index_api")
	}
	return &IndexAPI{service: service, logger: logger}
}

// RegisterRoutes registers index API routes
func (api *IndexAPI) RegisterRoutes(router gin.IRouter) {
	router.GET("/list-indexes", api.ListIndexes)
	router.POST("/create-index", api.CreateIndex)
	router.GET("/index-stats/:indexName", api.IndexStats)
	router.DELETE("/delete-index/:indexName", api.DeleteIndex)
}

// @Summary List indexes
// @Tags indexes
// @Produce json
// @Success 200 {object} object "Collections"
// @Failure 500 {object} ErrorResponse "Index failure"
// @Router /list-indexes [get]
func (api *IndexAPI) ListIndexes(c *gin.Context) {
	list, err := api.service.ListIndexes(c.Request.Context())
	if err != nil {
		respondError(c, api.logger, "ListIndexes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"indexes": list,
	})
}

// @Summary Create index
// @Description Create a collection. Dimension defaults to 384 and metric to cosine.
// @Tags indexes
// @Accept json
// @Produce json
// @Param request body CreateIndexRequest true "Collection to create"
// @Success 200 {object} object "Created collection"
// @Failure 400 {object} ErrorResponse "Missing indexName or bad dimension or metric"
// @Failure 500 {object} ErrorResponse "Index failure"
// @Router /create-index [post]
func (api *IndexAPI) CreateIndex(c *gin.Context) {
	var req CreateIndexRequest
	if !bindJSON(c, api.logger, "CreateIndex", &req) {
		return
	}

	created, err := api.service.CreateIndex(c.Request.Context(), services.CreateIndexInput{
		Name:      req.IndexName,
		Dimension: req.Dimension,
		Metric:    req.Metric,
	})
	if err != nil {
		respondError(c, api.logger, "CreateIndex", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    statusSuccess,
		"message":   fmt.Sprintf("Index %s created", created.Name),
		"indexName": created.Name,
		"dimension": created.Dimension,
		"metric":    created.Metric,
	})
}

// @Summary Index stats
// @Tags indexes
// @Produce json
// @Param indexName path string true "Collection name"
// @Success 200 {object} object "Statistics"
// @Failure 500 {object} ErrorResponse "Index failure"
// @Router /index-stats/{indexName} [get]
func (api *IndexAPI) IndexStats(c *gin.Context) {
	name := c.Param("indexName")
	stats, err := api.service.IndexStats(c.Request.Context(), name)
	if err != nil {
		respondError(c, api.logger, "IndexStats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    statusSuccess,
		"indexName": name,
		"stats":     stats,
	})
}

// @Summary Delete index
// @Tags indexes
// @Produce json
// @Param indexName path string true "Collection name"
// @Success 200 {object} object "Deletion confirmation"
// @Failure 500 {object} ErrorResponse "Index failure, including a missing collection"
// @Router /delete-index/{indexName} [delete]
func (api *IndexAPI) DeleteIndex(c *gin.Context) {
	name := c.Param("indexName")
	if err := api.service.DeleteIndex(c.Request.Context(), name); err != nil {
		respondError(c, api.logger, "DeleteIndex", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": fmt.Sprintf("Index %s deleted", name),
	})
}
