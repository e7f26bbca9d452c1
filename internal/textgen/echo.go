package textgen

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const maxEchoRunes = 80

// echoProvider answers without a backend so the service can run locally end to end.
// Output is a pure function of the prompt.
type echoProvider struct{}

func (echoProvider) Name() string { return "mock" }

func (echoProvider) Complete(ctx context.Context, prompt string, _ models.GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("mock: %w: %v", ErrInferenceTimeout, err)
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))

	firstLine := strings.TrimSpace(strings.SplitN(strings.TrimSpace(prompt), "\n", 2)[0])
	if r := []rune(firstLine); len(r) > maxEchoRunes {
		firstLine = string(r[:maxEchoRunes])
	}
	return fmt.Sprintf("[mock %08x] Response to: %s", h.Sum32(), firstLine), nil
}
