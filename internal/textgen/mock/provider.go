package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/researchmate/internal/textgen"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// Call records one Complete invocation.
type Call struct {
	Prompt string
	Params models.GenerationParams
}

// MockProvider satisfies models.TextGenerator for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, prompt string, params models.GenerationParams) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, prompt string, params models.GenerationParams) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, Params: params})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, params)
	}
	return "", nil
}

// Calls returns a copy of the recorded invocations in call order.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// NewMockProvider returns a MockProvider whose output names the call number and prompt size.
func NewMockProvider() *MockProvider {
	m := &MockProvider{Name_: "mock"}
	m.CompleteFunc = func(_ context.Context, prompt string, _ models.GenerationParams) (string, error) {
		m.mu.Lock()
		n := len(m.calls)
		m.mu.Unlock()
		return fmt.Sprintf("mock completion %d (%d prompt bytes)", n, len(prompt)), nil
	}
	return m
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ string, _ models.GenerationParams) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ string, _ models.GenerationParams) (string, error) {
			<-ctx.Done()
			return "", textgen.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements TextGenerator.
var _ models.TextGenerator = (*MockProvider)(nil)
