package driven

import "context"

// ComposeOptions configures one AI composition request.
type ComposeOptions struct {
	// SystemPrompt sets the system instruction, when supported.
	SystemPrompt string

	// MaxTokens bounds the response length.
	MaxTokens int
}

// Composition is the result of one AI composition request.
type Composition struct {
	// Text is the model's free-text response.
	Text string

	// Provider identifies the serving provider.
	Provider string

	// Model identifies the serving model.
	Model string
}

// Composer is the AI composition service. The engine always sends
// line-oriented free-text prompts and parses line-oriented free-text
// responses; free text tolerates partial or malformed model output where a
// JSON contract would not.
//
// This is an optional service - when nil, re-ranking and synthesis degrade
// to their deterministic fallbacks.
type Composer interface {
	// Compose sends one prompt and returns the response.
	// No streaming: simple request/response.
	Compose(ctx context.Context, prompt string, opts ComposeOptions) (*Composition, error)
}
