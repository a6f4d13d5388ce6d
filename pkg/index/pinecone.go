package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

const (
	defaultPineconeControllerURL = "https://api.pinecone.io"
	defaultPineconeAPIVersion    = "2024-07"
)

// PineconeConfig configures the Pinecone REST backend
type PineconeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	ControllerURL string `mapstructure:"controller_url"`
	APIVersion    string `mapstructure:"api_version"`
	Cloud         string `mapstructure:"cloud"`
	Region        string `mapstructure:"region"`
}

// PineconeClient implements Client against the Pinecone control and data
// plane REST APIs. The data plane host of an index is looked up on every
// call; nothing is cached.
type PineconeClient struct {
	config     PineconeConfig
	httpClient *http.Client
}

type pineconeIndexModel struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type pineconeIndexList struct {
	Indexes []pineconeIndexModel `json:"indexes"`
}

type pineconeCreateIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

type pineconeUpsertRequest struct {
	Vectors []Record `json:"vectors"`
}

type pineconeUpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

type pineconeStatsResponse struct {
	Dimension        int     `json:"dimension"`
	IndexFullness    float64 `json:"indexFullness"`
	TotalVectorCount int64   `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int64 `json:"vectorCount"`
	} `json:"namespaces"`
}

// pineconeErrorResponse covers both error shapes the API returns
type pineconeErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// NewPineconeClient creates a new PineconeClient
func NewPineconeClient(config PineconeConfig) (*PineconeClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("pinecone API key is required")
	}
	if config.ControllerURL == "" {
		config.ControllerURL = defaultPineconeControllerURL
	}
	config.ControllerURL = strings.TrimRight(config.ControllerURL, "/")
	if config.APIVersion == "" {
		config.APIVersion = defaultPineconeAPIVersion
	}
	if config.Cloud == "" {
		config.Cloud = "aws"
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	return &PineconeClient{config: config, httpClient: &http.Client{}}, nil
}

// Name returns the backend name
func (c *PineconeClient) Name() string { return "pinecone" }

// ListCollections lists every index in the project
func (c *PineconeClient) ListCollections(ctx context.Context) ([]CollectionDescriptor, error) {
	var list pineconeIndexList
	if err := c.do(ctx, "ListCollections", http.MethodGet, c.config.ControllerURL+"/indexes", nil, &list); err != nil {
		return nil, err
	}

	out := make([]CollectionDescriptor, 0, len(list.Indexes))
	for _, idx := range list.Indexes {
		out = append(out, idx.descriptor())
	}
	return out, nil
}

// CreateCollection creates a serverless index in the configured cloud and region
func (c *PineconeClient) CreateCollection(ctx context.Context, req CreateRequest) error {
	if err := ValidateCreate(req); err != nil {
		return err
	}

	body := pineconeCreateIndexRequest{Name: req.Name, Dimension: req.Dimension, Metric: req.Metric}
	body.Spec.Serverless.Cloud = c.config.Cloud
	body.Spec.Serverless.Region = c.config.Region

	return c.do(ctx, "CreateCollection", http.MethodPost, c.config.ControllerURL+"/indexes", body, nil)
}

// DeleteCollection deletes an index
func (c *PineconeClient) DeleteCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return commonerrors.Validation("DeleteCollection", "index name is required")
	}
	return c.do(ctx, "DeleteCollection", http.MethodDelete, c.indexURL(name), nil, nil)
}

// Upsert writes records to the index's default namespace
func (c *PineconeClient) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	host, err := c.resolveHost(ctx, "Upsert", collection)
	if err != nil {
		return 0, err
	}

	var resp pineconeUpsertResponse
	if err := c.do(ctx, "Upsert", http.MethodPost, host+"/vectors/upsert", pineconeUpsertRequest{Vectors: records}, &resp); err != nil {
		return 0, err
	}
	return resp.UpsertedCount, nil
}

// Query runs a nearest-neighbour query
func (c *PineconeClient) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	host, err := c.resolveHost(ctx, "Query", collection)
	if err != nil {
		return nil, err
	}

	body := pineconeQueryRequest{
		Vector:          req.Vector,
		TopK:            req.TopK,
		IncludeMetadata: req.IncludeMetadata,
	}
	var resp pineconeQueryResponse
	if err := c.do(ctx, "Query", http.MethodPost, host+"/query", body, &resp); err != nil {
		return nil, err
	}
	if resp.Matches == nil {
		return []Match{}, nil
	}
	return resp.Matches, nil
}

// DescribeStats returns record counts for an index
func (c *PineconeClient) DescribeStats(ctx context.Context, collection string) (*Stats, error) {
	host, err := c.resolveHost(ctx, "DescribeStats", collection)
	if err != nil {
		return nil, err
	}

	var resp pineconeStatsResponse
	if err := c.do(ctx, "DescribeStats", http.MethodPost, host+"/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}

	stats := &Stats{
		Dimension:        resp.Dimension,
		IndexFullness:    resp.IndexFullness,
		TotalRecordCount: resp.TotalVectorCount,
		Namespaces:       make(map[string]NamespaceStats, len(resp.Namespaces)),
	}
	for name, ns := range resp.Namespaces {
		stats.Namespaces[name] = NamespaceStats{RecordCount: ns.VectorCount}
	}
	return stats, nil
}

func (m pineconeIndexModel) descriptor() CollectionDescriptor {
	return CollectionDescriptor{
		Name:      m.Name,
		Dimension: m.Dimension,
		Metric:    m.Metric,
		Host:      m.Host,
		Ready:     m.Status.Ready,
		State:     m.Status.State,
	}
}

func (c *PineconeClient) indexURL(name string) string {
	return c.config.ControllerURL + "/indexes/" + url.PathEscape(name)
}

// resolveHost describes the index and returns its data plane base URL
func (c *PineconeClient) resolveHost(ctx context.Context, op, collection string) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", commonerrors.Validation(op, "index name is required")
	}

	var model pineconeIndexModel
	if err := c.do(ctx, op, http.MethodGet, c.indexURL(collection), nil, &model); err != nil {
		return "", err
	}
	if model.Host == "" {
		return "", commonerrors.Index(op, fmt.Sprintf("index %s has no host yet", collection), nil)
	}

	host := strings.TrimRight(model.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host, nil
}

func (c *PineconeClient) do(ctx context.Context, op, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return commonerrors.Index(op, "failed to marshal request", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return commonerrors.Index(op, "failed to create request", err)
	}
	req.Header.Set("Api-Key", c.config.APIKey)
	req.Header.Set("X-Pinecone-API-Version", c.config.APIVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return commonerrors.Index(op, "pinecone request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return commonerrors.Index(op, "failed to read pinecone response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return commonerrors.IndexWithStatus(op, pineconeErrorMessage(resp.StatusCode, respBody), resp.StatusCode, nil)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return commonerrors.Index(op, "failed to parse pinecone response", err)
	}
	return nil
}

func pineconeErrorMessage(status int, body []byte) string {
	var errResp pineconeErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error.Message != "":
			return fmt.Sprintf("pinecone returned %d: %s", status, errResp.Error.Message)
		case errResp.Message != "":
			return fmt.Sprintf("pinecone returned %d: %s", status, errResp.Message)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return fmt.Sprintf("pinecone returned %d: %s", status, text)
	}
	return fmt.Sprintf("pinecone returned %d %s", status, http.StatusText(status))
}
