package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

// HTTPConfig configures a remote inference service speaking the
// OpenAI-compatible embeddings API
type HTTPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	// SendDimensions asks the service to truncate to the configured dimension
	SendDimensions bool `mapstructure:"send_dimensions"`
}

// HTTPEmbedder calls POST {endpoint}/embeddings
type HTTPEmbedder struct {
	model      string
	dimension  int
	config     HTTPConfig
	httpClient *http.Client
}

type embeddingsRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	Dimensions     *int   `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding Vector `json:"embedding"`
		Index     int    `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingsErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// NewHTTPEmbedder creates a new HTTPEmbedder
func NewHTTPEmbedder(model string, dimension int, config HTTPConfig) (*HTTPEmbedder, error) {
	if config.Endpoint == "" {
		return nil, errors.New("embedding.http.endpoint is required")
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	if model == "" {
		model = DefaultHTTPModel
	}

	return &HTTPEmbedder{
		model:      model,
		dimension:  dimension,
		config:     config,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider name
func (p *HTTPEmbedder) Name() string { return ProviderHTTP }

// Model returns the remote model name
func (p *HTTPEmbedder) Model() string { return p.model }

// Dimension returns the configured vector length
func (p *HTTPEmbedder) Dimension() int { return p.dimension }

// Embed requests one embedding from the remote service
func (p *HTTPEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := checkText(ProviderHTTP, text); err != nil {
		return nil, err
	}

	reqBody := embeddingsRequest{Input: text, Model: p.model, EncodingFormat: "float"}
	if p.config.SendDimensions {
		dims := p.dimension
		reqBody.Dimensions = &dims
	}

	resp, err := p.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	vector := resp.Data[0].Embedding
	if err := checkDimension(ProviderHTTP, vector, p.dimension); err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *HTTPEmbedder) doRequest(ctx context.Context, reqBody embeddingsRequest) (*embeddingsResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, commonerrors.Embedding("http.Embed", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, commonerrors.Embedding("http.Embed", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, commonerrors.Embedding("http.Embed", "embedding service unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, commonerrors.Embedding("http.Embed", "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var errResp embeddingsErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		e := commonerrors.Embedding("http.Embed", fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, msg), nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	var out embeddingsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, commonerrors.Embedding("http.Embed", "failed to parse response", err)
	}
	if len(out.Data) == 0 {
		return nil, commonerrors.Embedding("http.Embed", "no embedding data in response", nil)
	}
	return &out, nil
}
