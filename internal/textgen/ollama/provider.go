package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// Provider implements models.TextGenerator using Ollama's /api/generate endpoint.
type Provider struct {
	baseURL string
	model   string
	client  *transport.Client
}

func NewProvider(cfg config.OllamaConfig, client *transport.Client) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  client,
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

func (p *Provider) Complete(ctx context.Context, prompt string, params models.GenerationParams) (string, error) {
	req := generateRequest{
		Model:  p.model,
		Prompt: prompt,
		Options: generateOptions{
			NumPredict:  params.MaxTokens,
			Temperature: params.Temperature,
			Stop:        params.Stop,
		},
	}

	var resp generateResponse
	if err := p.client.PostJSON(ctx, p.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Response == nil {
		return "", fmt.Errorf("ollama: %w: missing response field", transport.ErrInvalidResponse)
	}
	return strings.TrimSpace(*resp.Response), nil
}

var _ models.TextGenerator = (*Provider)(nil)
