package agents

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/pkg/models"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       string
	}{
		{
			name:       "fence with language hint",
			completion: "Here you go:\n```go\nfunc main() {}\n```\nDone.",
			want:       "func main() {}",
		},
		{
			name:       "fence without hint",
			completion: "```\nx = 1\n```",
			want:       "x = 1",
		},
		{
			name:       "first of two fences",
			completion: "```python\nprint(1)\n```\nand\n```python\nprint(2)\n```",
			want:       "print(1)",
		},
		{
			name:       "no fence",
			completion: "just prose",
			want:       "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.completion); got != tt.want {
				t.Errorf("ExtractCode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Write a Go function that reverses a slice", "go"},
		{"Refactor this JavaScript handler", "javascript"},
		{"Write a function to dedupe a list", "python"},
	}
	for _, tt := range tests {
		if got := detectLanguage(tt.description); got != tt.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestCodingAgentExecute(t *testing.T) {
	tests := []struct {
		name        string
		description string
		completion  string
		wantMode    string
		wantCode    string
	}{
		{
			name:        "generate extracts fenced code",
			description: "Write a python function that sorts a list",
			completion:  "Sure.\n```python\ndef f(xs):\n    return sorted(xs)\n```",
			wantMode:    "generate",
			wantCode:    "def f(xs):\n    return sorted(xs)",
		},
		{
			name:        "review keeps prose only",
			description: "Review this go code for bugs",
			completion:  "The error is ignored on line 3.",
			wantMode:    "review",
		},
		{
			name:        "refactor extracts fenced code",
			description: "Refactor this rust loop",
			completion:  "```rust\nfor x in xs {}\n```",
			wantMode:    "refactor",
			wantCode:    "for x in xs {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{fn: func(llm.Request) (string, error) {
				return tt.completion, nil
			}}
			agent := NewCodingAgent("coding", completer, oneShot(), zap.NewNop())

			out, err := agent.Execute(context.Background(), models.Task{ID: "t1", Description: tt.description})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if out.NeedsCollaboration() {
				t.Fatal("coding tasks should not fan out")
			}
			if got := out.Payload["mode"]; got != tt.wantMode {
				t.Errorf("mode = %v, want %v", got, tt.wantMode)
			}
			code, hasCode := out.Payload["code"]
			if tt.wantMode == "review" {
				if hasCode {
					t.Errorf("review payload should not carry code, got %v", code)
				}
			} else if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestCodingAgentCompletionFailure(t *testing.T) {
	completer := &fakeCompleter{fn: func(llm.Request) (string, error) {
		return "", llm.ErrInvalidPrompt
	}}
	agent := NewCodingAgent("coding", completer, oneShot(), zap.NewNop())

	_, err := agent.Execute(context.Background(), models.Task{ID: "t1", Description: "write code"})
	if !errors.Is(err, llm.ErrInvalidPrompt) {
		t.Errorf("Execute error = %v, want ErrInvalidPrompt", err)
	}
}

func TestCodingAgentResume(t *testing.T) {
	agent := NewCodingAgent("coding", &fakeCompleter{}, oneShot(), zap.NewNop())
	if _, err := agent.Resume(context.Background(), models.Task{}, "", nil); !errors.Is(err, ErrNotResumable) {
		t.Errorf("Resume error = %v, want ErrNotResumable", err)
	}
}
