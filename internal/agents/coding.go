package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

const (
	codingGeneratePrompt = "You are an expert %s programmer. Generate clean, efficient code based on the requirements. " +
		"Put the code in a fenced code block."
	codingReviewPrompt = "You are a code review expert. Analyze this %s code and provide feedback on quality, bugs, " +
		"and improvements."
	codingRefactorPrompt = "You are a code refactoring expert. Improve this %s code while maintaining its functionality. " +
		"Put the refactored code in a fenced code block."
)

// codeFencePattern captures the body of the first fenced code block,
// ignoring the optional language hint on the opening fence.
var codeFencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9+-]*\n(.*?)```")

// knownLanguages are the language hints recognized in task descriptions.
var knownLanguages = []string{"go", "python", "javascript", "typescript", "rust", "java", "c++", "sql", "bash"}

// CodingAgent handles code generation, review, and refactoring through the
// language-completion collaborator. It never requests collaboration.
type CodingAgent struct {
	id        string
	completer llm.Completer
	policy    retry.Policy
	log       *zap.Logger
}

// NewCodingAgent creates a CodingAgent.
func NewCodingAgent(id string, completer llm.Completer, policy retry.Policy, log *zap.Logger) *CodingAgent {
	policy.Retryable = llm.Retryable
	return &CodingAgent{id: id, completer: completer, policy: policy, log: log}
}

// ID implements Agent.
func (a *CodingAgent) ID() string { return a.id }

// Execute implements Agent.
func (a *CodingAgent) Execute(ctx context.Context, task models.Task) (*Outcome, error) {
	language := detectLanguage(task.Description)

	var system string
	mode := "generate"
	switch {
	case containsAny(task.Description, "review", "analyze"):
		system, mode = fmt.Sprintf(codingReviewPrompt, language), "review"
	case containsAny(task.Description, "refactor", "improve", "clean up"):
		system, mode = fmt.Sprintf(codingRefactorPrompt, language), "refactor"
	default:
		system = fmt.Sprintf(codingGeneratePrompt, language)
	}

	var text string
	err := a.policy.Do(ctx, func() error {
		var err error
		text, err = a.completer.Complete(ctx, llm.Request{
			System:      system,
			Prompt:      task.Description,
			MaxTokens:   2000,
			Temperature: 0.4,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("language completion: %w", err)
	}

	payload := map[string]any{
		"mode":        mode,
		"language":    language,
		"explanation": text,
	}
	if mode != "review" {
		payload["code"] = ExtractCode(text)
	}
	return &Outcome{Payload: payload}, nil
}

// Resume implements Agent.
func (a *CodingAgent) Resume(context.Context, models.Task, string, []models.SubTaskResult) (*Outcome, error) {
	return nil, ErrNotResumable
}

// ExtractCode returns the body of the first fenced code block, or the empty
// string when the completion carries no fence.
func ExtractCode(completion string) string {
	m := codeFencePattern.FindStringSubmatch(completion)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func detectLanguage(description string) string {
	lower := strings.ToLower(description)
	for _, lang := range knownLanguages {
		if strings.Contains(lower, lang) {
			return lang
		}
	}
	return "python"
}
