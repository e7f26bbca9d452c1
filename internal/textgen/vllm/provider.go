package vllm

import (
	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen/openai"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
)

// NewProvider returns a provider for a vLLM server's OpenAI-compatible completions endpoint.
func NewProvider(cfg config.VLLMConfig, client *transport.Client) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model, client)
}
