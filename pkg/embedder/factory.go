package embedder

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Backend names the configured neural embedder provider.
type Backend string

const (
	BackendOpenAI  Backend = "openai"
	BackendBedrock Backend = "bedrock"
	BackendOllama  Backend = "ollama"
	BackendHash    Backend = "hash"
)

// Config selects and configures an embedder backend.
type Config struct {
	Backend Backend
	OpenAI  OpenAIEmbedderConfig
	Bedrock BedrockEmbedderConfig
	Ollama  OllamaEmbedderConfig
	Logger  hclog.Logger
}

// New builds the configured embedder. If construction fails, it falls
// back to the deterministic hash embedder rather than returning an
// error — per the framework's fatal-initialization rule, only "neural
// embedder failed to load *and* hash fallback disabled" is fatal, and
// this factory never disables the fallback.
func New(ctx context.Context, cfg Config) Embedder {
	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	embedder, err := build(ctx, cfg)
	if err != nil {
		log.Warn("neural embedder failed to load, falling back to hash embedder", "backend", cfg.Backend, "error", err)
		return HashEmbedder{}
	}
	return embedder
}

func build(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return NewOpenAIEmbedder(cfg.OpenAI)
	case BackendBedrock:
		return NewBedrockEmbedder(ctx, cfg.Bedrock)
	case BackendOllama:
		return NewOllamaEmbedder(cfg.Ollama), nil
	case BackendHash, "":
		return HashEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", cfg.Backend)
	}
}
