package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint directly, mirroring
// the request/response shape the teacher's openai_embeddings tests
// expect (OpenAIEmbeddingsRequest/Response), since no implementation for
// it shipped in the retrieved package.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	http       *http.Client
	log        hclog.Logger
}

// OpenAIEmbedderConfig configures an OpenAIEmbedder.
type OpenAIEmbedderConfig struct {
	APIKey     string
	Model      string // default: text-embedding-3-small
	Dimensions int    // default: 1536
	BaseURL    string // default: https://api.openai.com/v1
	Logger     hclog.Logger
}

// NewOpenAIEmbedder constructs an embedder backed by OpenAI.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &OpenAIEmbedder{
		apiKey: cfg.APIKey, model: cfg.Model, dimensions: cfg.Dimensions,
		baseURL: cfg.BaseURL, http: &http.Client{Timeout: 30 * time.Second},
		log: cfg.Logger.Named("openai-embedder"),
	}, nil
}

func (c *OpenAIEmbedder) Dimensions() int { return c.dimensions }

type openAIEmbeddingsRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(openAIEmbeddingsRequest{Input: text, Model: c.model, Dimensions: c.dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embeddings request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai embeddings: %w", err)
	}
	defer resp.Body.Close()

	var parsed openAIEmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai embeddings error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings returned no data")
	}

	vec := make([]float32, len(parsed.Data[0].Embedding))
	for i, v := range parsed.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
