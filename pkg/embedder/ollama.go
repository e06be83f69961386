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

// OllamaEmbedder calls a local Ollama server's /api/embeddings endpoint,
// mirroring pkg/llm's OllamaClient base-URL defaulting.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	http       *http.Client
	log        hclog.Logger
}

// OllamaEmbedderConfig configures an OllamaEmbedder.
type OllamaEmbedderConfig struct {
	BaseURL    string // default: http://localhost:11434
	Model      string // default: nomic-embed-text
	Dimensions int    // default: 768
	Logger     hclog.Logger
}

// NewOllamaEmbedder constructs an embedder backed by a local Ollama server.
func NewOllamaEmbedder(cfg OllamaEmbedderConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &OllamaEmbedder{
		baseURL: cfg.BaseURL, model: cfg.Model, dimensions: cfg.Dimensions,
		http: &http.Client{Timeout: 30 * time.Second}, log: cfg.Logger.Named("ollama-embedder"),
	}
}

func (o *OllamaEmbedder) Dimensions() int { return o.dimensions }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama embeddings: %w", err)
	}
	defer resp.Body.Close()

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
