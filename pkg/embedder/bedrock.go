package embedder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/hashicorp/go-hclog"
)

// BedrockEmbedder calls Amazon Titan Text Embeddings via InvokeModel,
// following the same region/AWS-config loading shape as pkg/llm's
// Bedrock Converse client, but against the embeddings model family
// rather than a chat model.
type BedrockEmbedder struct {
	client     *bedrockruntime.Client
	modelID    string
	dimensions int
	log        hclog.Logger
}

// BedrockEmbedderConfig configures a BedrockEmbedder.
type BedrockEmbedderConfig struct {
	Region     string
	ModelID    string // default: amazon.titan-embed-text-v2:0
	Dimensions int    // default: 1024
	Logger     hclog.Logger
}

// NewBedrockEmbedder constructs an embedder backed by AWS Bedrock.
func NewBedrockEmbedder(ctx context.Context, cfg BedrockEmbedderConfig) (*BedrockEmbedder, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "amazon.titan-embed-text-v2:0"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &BedrockEmbedder{
		client:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:    cfg.ModelID,
		dimensions: cfg.Dimensions,
		log:        cfg.Logger.Named("bedrock-embedder"),
	}, nil
}

func (b *BedrockEmbedder) Dimensions() int { return b.dimensions }

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (b *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text, Dimensions: b.dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshaling titan request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking bedrock embedding model: %w", err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decoding titan response: %w", err)
	}
	return resp.Embedding, nil
}
