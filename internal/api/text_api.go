package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/S-Corkum/embedding-gateway/internal/services"
	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

var errBadEntry = errors.New("entry must be a string or an object with a string text field")

// TextAPI handles the text ingestion and retrieval endpoints
type TextAPI struct {
	service *services.TextService
	logger  observability.Logger
}

// NewTextAPI creates a new text API handler
func NewTextAPI(service *services.TextService, logger observability.Logger) *TextAPI {
	if logger == nil {
		logger = observability.NewLogger("text_api")
	}
	return &TextAPI{service: service, logger: logger}
}

// RegisterRoutes registers text API routes
func (api *TextAPI) RegisterRoutes(router gin.IRouter) {
	router.POST("/add-text", api.AddText)
	router.POST("/query-text", api.QueryText)
	router.POST("/add-multiple-texts", api.AddMultipleTexts)
}

// bindJSON decodes the body, answering 400 itself on failure
func bindJSON(c *gin.Context, logger observability.Logger, action string, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, logger, action, commonerrors.Validationf(action, "invalid JSON body: %v", err))
		return false
	}
	return true
}

// @Summary Add text
// @Description Embed one text and upsert it with enriched metadata
// @Tags texts
// @Accept json
// @Produce json
// @Param request body AddTextRequest true "Text to add"
// @Success 200 {object} object "Stored record"
// @Failure 400 {object} ErrorResponse "Missing indexName or text"
// @Failure 500 {object} ErrorResponse "Embedding or index failure"
// @Router /add-text [post]
func (api *TextAPI) AddText(c *gin.Context) {
	var req AddTextRequest
	if !bindJSON(c, api.logger, "AddText", &req) {
		return
	}

	result, err := api.service.AddText(c.Request.Context(), services.AddTextInput{
		IndexName: req.IndexName,
		Text:      req.Text,
		Metadata:  req.Metadata,
		ID:        req.ID,
	})
	if err != nil {
		respondError(c, api.logger, "AddText", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": fmt.Sprintf("Text added to index %s", req.IndexName),
		"data":    result,
	})
}

// @Summary Query text
// @Description Embed the query text and return the nearest records
// @Tags texts
// @Accept json
// @Produce json
// @Param request body QueryTextRequest true "Query"
// @Success 200 {object} object "Ranked results"
// @Failure 400 {object} ErrorResponse "Missing indexName or text"
// @Failure 500 {object} ErrorResponse "Embedding or index failure"
// @Router /query-text [post]
func (api *TextAPI) QueryText(c *gin.Context) {
	var req QueryTextRequest
	if !bindJSON(c, api.logger, "QueryText", &req) {
		return
	}

	result, err := api.service.QueryText(c.Request.Context(), services.QueryTextInput{
		IndexName:       req.IndexName,
		Text:            req.Text,
		TopK:            req.TopK,
		IncludeMetadata: req.IncludeMetadata,
	})
	if err != nil {
		respondError(c, api.logger, "QueryText", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       statusSuccess,
		"query":        result.Query,
		"resultsCount": len(result.Results),
		"results":      result.Results,
	})
}

// @Summary Add multiple texts
// @Description Embed each entry in order and upsert the successes in one call. Entry failures are reported per item.
// @Tags texts
// @Accept json
// @Produce json
// @Param request body object true "indexName and texts"
// @Success 200 {object} object "Per-item outcome"
// @Failure 400 {object} ErrorResponse "Missing indexName or texts"
// @Failure 500 {object} ErrorResponse "Batch upsert failure"
// @Router /add-multiple-texts [post]
func (api *TextAPI) AddMultipleTexts(c *gin.Context) {
	var req AddMultipleTextsRequest
	if !bindJSON(c, api.logger, "AddMultipleTexts", &req) {
		return
	}
	if req.IndexName == "" {
		respondError(c, api.logger, "AddMultipleTexts", commonerrors.Validation("AddMultipleTexts", "indexName is required"))
		return
	}

	items, err := decodeBatch(req.Texts)
	if err != nil {
		respondError(c, api.logger, "AddMultipleTexts", err)
		return
	}

	result, err := api.service.AddTexts(c.Request.Context(), req.IndexName, items)
	if err != nil {
		respondError(c, api.logger, "AddMultipleTexts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            statusSuccess,
		"message":           fmt.Sprintf("Processed %d texts: %d added, %d failed", result.Total, result.Succeeded, result.Failed),
		"totalTexts":        result.Total,
		"successfullyAdded": result.Succeeded,
		"failed":            result.Failed,
		"results":           result.Results,
	})
}

// decodeBatch accepts a JSON array whose entries are strings or
// {text, metadata?, id?} objects. Bad entries become failed items.
func decodeBatch(raw json.RawMessage) ([]services.BatchItem, error) {
	var entries []json.RawMessage
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &entries) != nil || len(entries) == 0 {
		return nil, commonerrors.Validation("AddMultipleTexts", "texts must be a non-empty array")
	}

	items := make([]services.BatchItem, 0, len(entries))
	for _, entry := range entries {
		// null decodes into a string without error
		if bytes.Equal(bytes.TrimSpace(entry), []byte("null")) {
			items = append(items, services.BatchItem{Err: errBadEntry})
			continue
		}

		var text string
		if err := json.Unmarshal(entry, &text); err == nil {
			items = append(items, services.BatchItem{Text: text})
			continue
		}

		var obj textEntry
		if err := json.Unmarshal(entry, &obj); err != nil || obj.Text == nil {
			items = append(items, services.BatchItem{Err: errBadEntry})
			continue
		}
		items = append(items, services.BatchItem{Text: *obj.Text, Metadata: obj.Metadata, ID: obj.ID})
	}
	return items, nil
}
