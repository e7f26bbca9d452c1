package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/researchmate/internal/config"
	"github.com/kiranshivaraju/researchmate/internal/textgen"
	"github.com/kiranshivaraju/researchmate/internal/textgen/openai"
	"github.com/kiranshivaraju/researchmate/internal/textgen/transport"
	"github.com/kiranshivaraju/researchmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_SendsBearerKey(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"text":"\nreport body"}]}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-3.5-turbo-instruct"}, transport.New(time.Second))
	out, err := p.Complete(context.Background(), "write", models.GenerationParams{MaxTokens: 64, Stop: []string{"###"}})

	require.NoError(t, err)
	assert.Equal(t, "report body", out)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-3.5-turbo-instruct", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.Equal(t, []any{"###"}, got["stop"])
}

func TestNewCompatible_NoKeyNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"text":"ok"}]}`))
	}))
	defer srv.Close()

	p := openai.NewCompatible("local", srv.URL, "", "m", transport.New(time.Second))
	out, err := p.Complete(context.Background(), "x", models.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "local", p.Name())
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := openai.NewCompatible("openai", srv.URL, "k", "m", transport.New(time.Second))
	_, err := p.Complete(context.Background(), "x", models.GenerationParams{})
	assert.ErrorIs(t, err, textgen.ErrInvalidResponse)
}

func TestComplete_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := openai.NewCompatible("openai", srv.URL, "bad", "m", transport.New(time.Second))
	_, err := p.Complete(context.Background(), "x", models.GenerationParams{})
	assert.ErrorIs(t, err, textgen.ErrInvalidResponse)
	assert.Contains(t, err.Error(), "401")
}
