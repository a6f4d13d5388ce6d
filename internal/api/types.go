package api

import "encoding/json"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string `json:"status" example:"error"`
	Message string `json:"message"`
}

// AddTextRequest represents a request to embed and store one text
type AddTextRequest struct {
	IndexName string                 `json:"indexName"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata"`
	ID        string                 `json:"id"`
}

// QueryTextRequest represents a similarity search by text
type QueryTextRequest struct {
	IndexName       string `json:"indexName"`
	Text            string `json:"text"`
	TopK            *int   `json:"topK"`
	IncludeMetadata *bool  `json:"includeMetadata"`
}

// AddMultipleTextsRequest represents a batch add. Texts is decoded entry by
// entry so that one malformed entry fails alone.
type AddMultipleTextsRequest struct {
	IndexName string          `json:"indexName"`
	Texts     json.RawMessage `json:"texts"`
}

// textEntry is the object form of a batch entry
type textEntry struct {
	Text     *string                `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	ID       string                 `json:"id"`
}

// CreateIndexRequest represents a request to create a collection
type CreateIndexRequest struct {
	IndexName string `json:"indexName"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}
