package embedding

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/pkg/errors"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

// BedrockConfig configures the AWS Bedrock embedder
type BedrockConfig struct {
	Region string `mapstructure:"region"`
}

// bedrockInvoker is the slice of the Bedrock runtime client the embedder uses
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type titanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

type titanEmbeddingResponse struct {
	Embedding           Vector `json:"embedding"`
	InputTextTokenCount int    `json:"inputTextTokenCount"`
}

// BedrockEmbedder invokes an Amazon Titan text embedding model
type BedrockEmbedder struct {
	model     string
	dimension int
	client    bedrockInvoker
}

// NewBedrockEmbedder loads the default AWS configuration for the region and
// creates a Bedrock runtime client
func NewBedrockEmbedder(ctx context.Context, model string, dimension int, cfg BedrockConfig) (*BedrockEmbedder, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return newBedrockEmbedder(model, dimension, bedrockruntime.NewFromConfig(awsCfg)), nil
}

func newBedrockEmbedder(model string, dimension int, client bedrockInvoker) *BedrockEmbedder {
	if model == "" {
		model = DefaultBedrockModel
	}
	return &BedrockEmbedder{model: model, dimension: dimension, client: client}
}

// Name returns the provider name
func (p *BedrockEmbedder) Name() string { return ProviderBedrock }

// Model returns the Bedrock model id
func (p *BedrockEmbedder) Model() string { return p.model }

// Dimension returns the configured vector length
func (p *BedrockEmbedder) Dimension() int { return p.dimension }

// Embed invokes the model for text
func (p *BedrockEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := checkText(ProviderBedrock, text); err != nil {
		return nil, err
	}

	titanReq := titanEmbeddingRequest{InputText: text}
	// Only Titan v2 accepts an output size
	if p.model == DefaultBedrockModel {
		titanReq.Dimensions = p.dimension
		titanReq.Normalize = true
	}

	requestBody, err := json.Marshal(titanReq)
	if err != nil {
		return nil, commonerrors.Embedding("bedrock.Embed", "failed to marshal request", err)
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, commonerrors.Embedding("bedrock.Embed", "bedrock invocation failed", err)
	}

	var titanResp titanEmbeddingResponse
	if err := json.Unmarshal(resp.Body, &titanResp); err != nil {
		return nil, commonerrors.Embedding("bedrock.Embed", "failed to parse response", err)
	}
	if err := checkDimension(ProviderBedrock, titanResp.Embedding, p.dimension); err != nil {
		return nil, err
	}
	return titanResp.Embedding, nil
}
