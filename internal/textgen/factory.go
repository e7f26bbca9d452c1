// Package textgen constructs text service clients from configuration.
package textgen

import (
	"fmt"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen/anthropic"
	"github.com/kiranshivaraju/researchmate/internal/textgen/llamacpp"
	"github.com/kiranshivaraju/researchmate/internal/textgen/ollama"
	"github.com/kiranshivaraju/researchmate/internal/textgen/openai"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
	"github.com/kiranshivaraju/researchmate/internal/textgen/vllm"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// NewProvider constructs the text generator named by cfg.Provider.
// Called once at server startup.
func NewProvider(cfg config.TextGenConfig) (models.TextGenerator, error) {
	client := transport.New(cfg.Timeout)

	switch cfg.Provider {
	case "llamacpp":
		return llamacpp.NewProvider(cfg.LlamaCpp, client), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, client), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, client), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, client), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, client), nil
	case "mock":
		return echoProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown text provider %q: must be one of llamacpp, ollama, vllm, openai, anthropic, mock", cfg.Provider)
	}
}

// DefaultParams returns the sampling defaults configured for every call.
func DefaultParams(cfg config.TextGenConfig) models.GenerationParams {
	return models.GenerationParams{
		MaxTokens:   cfg.MaxTokens,
		Temperature: models.Float(cfg.Temperature),
	}
}
