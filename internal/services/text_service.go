package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
	"github.com/S-Corkum/embedding-gateway/pkg/embedding"
	"github.com/S-Corkum/embedding-gateway/pkg/index"
	"github.com/S-Corkum/embedding-gateway/pkg/observability"
)

const (
	// DefaultTopK is used when a query does not ask for a result count
	DefaultTopK = 5
	// MaxTopK is the largest result count a query may request
	MaxTopK = 10000

	idAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	idSuffixLength = 9

	// StatusProcessed and StatusFailed are the per-item batch outcomes
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// AddTextInput is one text to embed and store
type AddTextInput struct {
	IndexName string
	Text      string
	Metadata  map[string]interface{}
	ID        string
}

// AddTextResult describes the stored record
type AddTextResult struct {
	ID              string                 `json:"id"`
	Text            string                 `json:"text"`
	IndexName       string                 `json:"indexName"`
	VectorDimension int                    `json:"vectorDimension"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// QueryTextInput is a similarity query by text. Nil fields take defaults.
type QueryTextInput struct {
	IndexName       string
	Text            string
	TopK            *int
	IncludeMetadata *bool
}

// RankedResult is one query hit with its 1-based rank
type RankedResult struct {
	Rank     int                    `json:"rank"`
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Text     string                 `json:"text,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// QueryTextResult is the ranked answer to a query
type QueryTextResult struct {
	Query   string         `json:"query"`
	Results []RankedResult `json:"results"`
}

// BatchItem is one entry of a batch add. Err marks an entry that could not
// be decoded; it fails without being embedded.
type BatchItem struct {
	Text     string
	Metadata map[string]interface{}
	ID       string
	Err      error
}

// BatchItemResult is the outcome of one batch entry, in input order
type BatchItemResult struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult summarises a batch add
type BatchResult struct {
	Total     int               `json:"totalTexts"`
	Succeeded int               `json:"successfullyAdded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// CreateIndexInput creates a collection. Zero values take the configured defaults.
type CreateIndexInput struct {
	Name      string
	Dimension int
	Metric    string
}

// TextService runs the text to vector pipeline: embed, enrich, upsert or query
type TextService struct {
	embedder         embedding.Embedder
	index            index.Client
	logger           observability.Logger
	defaultDimension int
	defaultMetric    string

	now   func() time.Time
	newID func(time.Time) string
}

// Option configures a TextService
type Option func(*TextService)

// WithClock overrides the time source used for timestamps and IDs
func WithClock(now func() time.Time) Option {
	return func(s *TextService) { s.now = now }
}

// WithIDGenerator overrides record ID generation
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(s *TextService) { s.newID = gen }
}

// WithIndexDefaults sets the dimension and metric used by CreateIndex
func WithIndexDefaults(dimension int, metric string) Option {
	return func(s *TextService) {
		if dimension > 0 {
			s.defaultDimension = dimension
		}
		if metric != "" {
			s.defaultMetric = metric
		}
	}
}

// NewTextService creates a new TextService
func NewTextService(embedder embedding.Embedder, client index.Client, logger observability.Logger, opts ...Option) *TextService {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	s := &TextService{
		embedder:         embedder,
		index:            client,
		logger:           logger.WithPrefix("text-service"),
		defaultDimension: 384,
		defaultMetric:    index.MetricCosine,
		now:              time.Now,
		newID:            GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateID returns text_<unix millis>_<9 random lowercase alphanumerics>
func GenerateID(now time.Time) string {
	var suffix strings.Builder
	suffix.Grow(idSuffixLength)
	for i := 0; i < idSuffixLength; i++ {
		suffix.WriteByte(idAlphabet[rand.Intn(len(idAlphabet))])
	}
	return fmt.Sprintf("text_%d_%s", now.UnixMilli(), suffix.String())
}

// Embedder returns the configured embedder
func (s *TextService) Embedder() embedding.Embedder { return s.embedder }

// IndexBackend returns the name of the index backend
func (s *TextService) IndexBackend() string { return s.index.Name() }

func requireField(op, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return commonerrors.Validationf(op, "%s is required", name)
	}
	return nil
}

// enrich copies the caller's metadata and adds the pipeline fields, which
// take precedence over caller keys of the same name
func (s *TextService) enrich(text string, metadata map[string]interface{}, at time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+4)
	for k, v := range metadata {
		out[k] = v
	}
	out["text"] = text
	out["model"] = s.embedder.Model()
	out["dimension"] = s.embedder.Dimension()
	out["timestamp"] = at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return out
}

func (s *TextService) record(text, id string, metadata map[string]interface{}, vector embedding.Vector) index.Record {
	at := s.now()
	if id == "" {
		id = s.newID(at)
	}
	return index.Record{
		ID:       id,
		Values:   []float32(vector),
		Metadata: s.enrich(text, metadata, at),
	}
}

// AddText embeds one text and upserts it
func (s *TextService) AddText(ctx context.Context, in AddTextInput) (*AddTextResult, error) {
	if err := requireField("AddText", "indexName", in.IndexName); err != nil {
		return nil, err
	}
	if err := requireField("AddText", "text", in.Text); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	rec := s.record(in.Text, in.ID, in.Metadata, vector)
	if _, err := s.index.Upsert(ctx, in.IndexName, []index.Record{rec}); err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}

	s.logger.Info("Text added", map[string]interface{}{
		"index": in.IndexName,
		"id":    rec.ID,
	})

	return &AddTextResult{
		ID:              rec.ID,
		Text:            in.Text,
		IndexName:       in.IndexName,
		VectorDimension: len(vector),
		Metadata:        rec.Metadata,
	}, nil
}

// QueryText embeds the query text and returns the nearest records
func (s *TextService) QueryText(ctx context.Context, in QueryTextInput) (*QueryTextResult, error) {
	if err := requireField("QueryText", "indexName", in.IndexName); err != nil {
		return nil, err
	}
	if err := requireField("QueryText", "text", in.Text); err != nil {
		return nil, err
	}

	topK := DefaultTopK
	if in.TopK != nil && *in.TopK > 0 {
		topK = *in.TopK
	}
	if topK > MaxTopK {
		return nil, commonerrors.Validationf("QueryText", "topK must be at most %d", MaxTopK)
	}
	includeMetadata := true
	if in.IncludeMetadata != nil {
		includeMetadata = *in.IncludeMetadata
	}

	vector, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, in.IndexName, index.QueryRequest{
		Vector:          []float32(vector),
		TopK:            topK,
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]RankedResult, 0, len(matches))
	for i, m := range matches {
		r := RankedResult{Rank: i + 1, ID: m.ID, Score: m.Score}
		if includeMetadata {
			r.Metadata = m.Metadata
			if text, ok := m.Metadata["text"].(string); ok {
				r.Text = text
			}
		}
		results = append(results, r)
	}
	return &QueryTextResult{Query: in.Text, Results: results}, nil
}

// AddTexts embeds each item in order. Item failures are recorded and the
// batch continues; every embedded item is then upserted in a single call.
// An empty batch is a validation error, a batch in which every item failed
// is not.
func (s *TextService) AddTexts(ctx context.Context, indexName string, items []BatchItem) (*BatchResult, error) {
	if err := requireField("AddTexts", "indexName", indexName); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, commonerrors.Validation("AddTexts", "texts must be a non-empty array")
	}

	result := &BatchResult{Total: len(items), Results: make([]BatchItemResult, 0, len(items))}
	records := make([]index.Record, 0, len(items))

	for i, item := range items {
		entry := BatchItemResult{Index: i, Text: item.Text}

		err := item.Err
		if err == nil {
			err = requireField("AddTexts", "text", item.Text)
		}
		var vector embedding.Vector
		if err == nil {
			vector, err = s.embedder.Embed(ctx, item.Text)
		}
		if err != nil {
			entry.Status = StatusFailed
			entry.Error = err.Error()
			result.Failed++
			result.Results = append(result.Results, entry)
			continue
		}

		rec := s.record(item.Text, item.ID, item.Metadata, vector)
		records = append(records, rec)
		entry.ID = rec.ID
		entry.Status = StatusProcessed
		result.Succeeded++
		result.Results = append(result.Results, entry)
	}

	if len(records) > 0 {
		if _, err := s.index.Upsert(ctx, indexName, records); err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
	}

	s.logger.Info("Batch processed", map[string]interface{}{
		"index":     indexName,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}

// ListIndexes lists the backend's collections
func (s *TextService) ListIndexes(ctx context.Context) ([]index.CollectionDescriptor, error) {
	return s.index.ListCollections(ctx)
}

// CreateIndex creates a collection, filling in the default dimension and metric
func (s *TextService) CreateIndex(ctx context.Context, in CreateIndexInput) (index.CreateRequest, error) {
	req := index.CreateRequest{Name: in.Name, Dimension: in.Dimension, Metric: in.Metric}
	if err := requireField("CreateIndex", "indexName", req.Name); err != nil {
		return req, err
	}
	if req.Dimension == 0 {
		req.Dimension = s.defaultDimension
	}
	if req.Metric == "" {
		req.Metric = s.defaultMetric
	}
	if err := index.ValidateCreate(req); err != nil {
		return req, err
	}

	if err := s.index.CreateCollection(ctx, req); err != nil {
		return req, fmt.Errorf("create index: %w", err)
	}
	s.logger.Info("Index created", map[string]interface{}{
		"index":     req.Name,
		"dimension": req.Dimension,
		"metric":    req.Metric,
	})
	return req, nil
}

// IndexStats describes one collection
func (s *TextService) IndexStats(ctx context.Context, name string) (*index.Stats, error) {
	if err := requireField("IndexStats", "indexName", name); err != nil {
		return nil, err
	}
	return s.index.DescribeStats(ctx, name)
}

// DeleteIndex deletes one collection
func (s *TextService) DeleteIndex(ctx context.Context, name string) error {
	if err := requireField("DeleteIndex", "indexName", name); err != nil {
		return err
	}
	if err := s.index.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	s.logger.Info("Index deleted", map[string]interface{}{"index": name})
	return nil
}

// CheckBackend verifies the index backend answers and returns its collection count
func (s *TextService) CheckBackend(ctx context.Context) (int, error) {
	list, err := s.index.ListCollections(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
