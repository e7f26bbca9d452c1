package textgen

import "github.com/kiranshivaraju/researchmate/internal/textgen/transport"

// Re-exported so callers match on textgen errors without importing transport.
var (
	ErrProviderUnavailable = transport.ErrProviderUnavailable
	ErrInferenceTimeout    = transport.ErrInferenceTimeout
	ErrInvalidResponse     = transport.ErrInvalidResponse
)
