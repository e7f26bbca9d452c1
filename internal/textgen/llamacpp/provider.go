package llamacpp

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const promptTemplate = "### Instruction:\n%s\n\n### Response:"

// templateStops keep the model from starting a new turn of the instruction template.
var templateStops = []string{"\n### Instruction:", "\n### Response:", "User:"}

// Provider implements models.TextGenerator against a llama.cpp server's /completion endpoint.
type Provider struct {
	url    string
	client *transport.Client
}

// NewProvider creates a llama.cpp provider.
func NewProvider(cfg config.LlamaCppConfig, client *transport.Client) *Provider {
	return &Provider{url: cfg.URL, client: client}
}

func (p *Provider) Name() string { return "llamacpp" }

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	NPredict    int      `json:"n_predict"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop"`
}

type completionResponse struct {
	Content *string `json:"content"`
}

// Complete wraps prompt in the instruction template and returns the generated content.
func (p *Provider) Complete(ctx context.Context, prompt string, params models.GenerationParams) (string, error) {
	req := completionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, prompt),
		MaxTokens:   params.MaxTokens,
		NPredict:    params.MaxTokens,
		Temperature: params.Temperature,
		Stop:        mergeStops(params.Stop),
	}

	var resp completionResponse
	if err := p.client.PostJSON(ctx, p.url, nil, req, &resp); err != nil {
		return "", fmt.Errorf("llamacpp: %w", err)
	}
	if resp.Content == nil {
		return "", fmt.Errorf("llamacpp: %w: missing content field", transport.ErrInvalidResponse)
	}
	return strings.TrimSpace(*resp.Content), nil
}

func mergeStops(extra []string) []string {
	stops := make([]string, 0, len(templateStops)+len(extra))
	seen := make(map[string]bool, len(templateStops)+len(extra))
	for _, s := range append(append([]string(nil), extra...), templateStops...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		stops = append(stops, s)
	}
	return stops
}

var _ models.TextGenerator = (*Provider)(nil)
