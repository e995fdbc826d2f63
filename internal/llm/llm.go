// Package llm provides the language-completion collaborator: submit a
// prompt, receive generated text. Two implementations are provided, one on
// the Anthropic API (optionally via AWS Bedrock) and one on the OpenAI API.
package llm

import (
	"context"
	"errors"
)

// Collaborator failure taxonomy. RateLimited and Unavailable are transient
// and worth retrying; InvalidPrompt is not.
var (
	// ErrRateLimited indicates the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrUnavailable indicates the provider could not be reached or errored
	// server-side.
	ErrUnavailable = errors.New("llm: unavailable")
	// ErrInvalidPrompt indicates the provider rejected the request itself.
	ErrInvalidPrompt = errors.New("llm: invalid prompt")
)

// Retryable reports whether a completion error is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// Message is one turn of prior conversation context.
type Message struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the turn's text.
	Content string
}

// Request is a single completion request.
type Request struct {
	// System is the system prompt framing the agent's role.
	System string
	// Prompt is the user-facing request text.
	Prompt string
	// History is optional prior conversation context, oldest first.
	History []Message
	// MaxTokens caps the response length. Zero means the client default.
	MaxTokens int
	// Temperature controls sampling randomness. Zero means the client default.
	Temperature float64
}

// Completer is the language-completion collaborator contract.
type Completer interface {
	// Complete submits a prompt and returns the generated text. Failures are
	// wrapped in one of ErrRateLimited, ErrUnavailable, or ErrInvalidPrompt.
	Complete(ctx context.Context, req Request) (string, error)
}

// kindFromStatus maps an HTTP status from a provider SDK to the collaborator
// failure taxonomy.
func kindFromStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status >= 500, status == 408:
		return ErrUnavailable
	default:
		return ErrInvalidPrompt
	}
}
