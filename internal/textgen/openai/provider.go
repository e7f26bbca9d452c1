// Package openai talks to the OpenAI completions API and to servers that mimic it.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// Provider implements models.TextGenerator using POST /v1/completions.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *transport.Client
}

func NewProvider(cfg config.OpenAIConfig, client *transport.Client) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model, client)
}

// NewCompatible creates a provider for any server exposing the OpenAI completions API.
// An empty apiKey sends no Authorization header.
func NewCompatible(name, baseURL, apiKey, model string, client *transport.Client) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}
}

func (p *Provider) Name() string { return p.name }

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (p *Provider) Complete(ctx context.Context, prompt string, params models.GenerationParams) (string, error) {
	req := completionRequest{
		Model:       p.model,
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stop:        params.Stop,
	}

	var headers map[string]string
	if p.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.apiKey}
	}

	var resp completionResponse
	if err := p.client.PostJSON(ctx, p.baseURL+"/v1/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices", p.name, transport.ErrInvalidResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

var _ models.TextGenerator = (*Provider)(nil)
