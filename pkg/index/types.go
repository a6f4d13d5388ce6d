// Package index talks to a remote vector index service. Every Client
// method is a stateless pass-through: no retries, no caching, and every
// backend failure comes back as an index error carrying the backend's
// message.
package index

import (
	"context"
	"strings"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

// Similarity metrics accepted when creating a collection
const (
	MetricCosine     = "cosine"
	MetricEuclidean  = "euclidean"
	MetricDotProduct = "dotproduct"
)

// Client is the capability every vector index backend provides
type Client interface {
	ListCollections(ctx context.Context) ([]CollectionDescriptor, error)
	CreateCollection(ctx context.Context, req CreateRequest) error
	// Upsert writes records, overwriting any with the same ID, and returns
	// the number the backend acknowledged
	Upsert(ctx context.Context, collection string, records []Record) (int, error)
	Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error)
	DescribeStats(ctx context.Context, collection string) (*Stats, error)
	DeleteCollection(ctx context.Context, name string) error
	Name() string
}

// Record is one vector with its metadata
type Record struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CollectionDescriptor describes a collection as reported by the backend
type CollectionDescriptor struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host,omitempty"`
	Ready     bool   `json:"ready"`
	State     string `json:"state,omitempty"`
}

// CreateRequest creates a collection
type CreateRequest struct {
	Name      string
	Dimension int
	Metric    string
}

// QueryRequest is a nearest-neighbour query
type QueryRequest struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
}

// Match is one query hit, ordered by descending score
type Match struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NamespaceStats holds per-namespace counts
type NamespaceStats struct {
	RecordCount int64 `json:"recordCount"`
}

// Stats summarises a collection
type Stats struct {
	Dimension        int                       `json:"dimension"`
	IndexFullness    float64                   `json:"indexFullness"`
	TotalRecordCount int64                     `json:"totalRecordCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

// ValidateCreate checks a CreateRequest before any backend call
func ValidateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return commonerrors.Validation("CreateCollection", "index name is required")
	}
	if req.Dimension <= 0 {
		return commonerrors.Validationf("CreateCollection", "dimension must be positive, got %d", req.Dimension)
	}
	if !IsValidMetric(req.Metric) {
		return commonerrors.Validationf("CreateCollection", "metric must be one of cosine, euclidean, dotproduct, got %q", req.Metric)
	}
	return nil
}

// IsValidMetric reports whether metric is a supported similarity metric
func IsValidMetric(metric string) bool {
	switch metric {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	}
	return false
}
