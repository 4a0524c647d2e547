package models

import "context"

// CompletionRequest is one prompt sent to the language model. The system
// framing and user prompt are kept separate so providers can map them onto
// their native message roles.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completion is the raw model output plus cost accounting for the audit log.
type Completion struct {
	Text    string
	Model   string
	CostUSD float64
}

// AIProvider is the core interface all LLM integrations must implement.
// Never call a specific provider directly; always inject this interface.
type AIProvider interface {
	// Complete sends the request and returns the raw model output. The
	// response is not guaranteed to be JSON; callers parse defensively.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// Name returns the provider identifier (e.g., "openai").
	Name() string
}
