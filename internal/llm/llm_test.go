package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{429, ErrRateLimited},
		{500, ErrUnavailable},
		{502, ErrUnavailable},
		{503, ErrUnavailable},
		{408, ErrUnavailable},
		{400, ErrInvalidPrompt},
		{401, ErrInvalidPrompt},
		{404, ErrInvalidPrompt},
		{422, ErrInvalidPrompt},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			if got := kindFromStatus(tt.status); !errors.Is(got, tt.want) {
				t.Errorf("kindFromStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited is retryable", ErrRateLimited, true},
		{"unavailable is retryable", ErrUnavailable, true},
		{"wrapped rate limit is retryable", fmt.Errorf("%w: 429", ErrRateLimited), true},
		{"invalid prompt is not retryable", ErrInvalidPrompt, false},
		{"plain error is not retryable", errors.New("boom"), false},
		{"nil is not retryable", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
