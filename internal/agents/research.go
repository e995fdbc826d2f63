package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

// Research system prompts, one per request style.
const (
	researchSummarizePrompt = "You are a research assistant. Summarize the following information concisely but thoroughly."
	researchAnalyzePrompt   = "You are a research analyst. Analyze the following information and provide insights."
	researchGeneralPrompt   = "You are a research assistant. Provide comprehensive information on the following topic."
	researchSynthesisPrompt = "You are a research editor. Combine the following section drafts into one coherent report. " +
		"Note any sections that are missing."
)

// researchContinuation is the state a report task carries across its fan-out.
type researchContinuation struct {
	Topic string `json:"topic"`
}

// ResearchAgent handles information gathering and doubles as the
// general-purpose fallback for unclassifiable tasks. Report-style requests
// fan out into background, trend, and summary sub-tasks; its sub-task
// failure policy is to degrade and synthesize from whatever sections
// completed.
type ResearchAgent struct {
	id        string
	completer llm.Completer
	policy    retry.Policy
	log       *zap.Logger
}

// NewResearchAgent creates a ResearchAgent.
func NewResearchAgent(id string, completer llm.Completer, policy retry.Policy, log *zap.Logger) *ResearchAgent {
	policy.Retryable = llm.Retryable
	return &ResearchAgent{id: id, completer: completer, policy: policy, log: log}
}

// ID implements Agent.
func (a *ResearchAgent) ID() string { return a.id }

// Execute implements Agent.
func (a *ResearchAgent) Execute(ctx context.Context, task models.Task) (*Outcome, error) {
	// A report request is decomposed so the sections can run in parallel.
	// Sub-tasks carry pinned capabilities to skip re-classification.
	if containsAny(task.Description, "report") && task.ParentTaskID == "" {
		topic := task.Description
		cont, err := json.Marshal(researchContinuation{Topic: topic})
		if err != nil {
			return nil, fmt.Errorf("encode continuation: %w", err)
		}
		return &Outcome{
			SubTasks: []models.SubTaskRequest{
				{
					Description:  fmt.Sprintf("Gather background information on: %s", topic),
					Capabilities: []models.CapabilityTag{models.CapResearch},
				},
				{
					Description:  fmt.Sprintf("Analyze current trends related to: %s", topic),
					Capabilities: []models.CapabilityTag{models.CapResearch},
				},
				{
					Description:  fmt.Sprintf("Summarize key findings about: %s", topic),
					Capabilities: []models.CapabilityTag{models.CapResearch},
				},
			},
			Continuation: string(cont),
		}, nil
	}

	system, field := researchGeneralPrompt, "research"
	switch {
	case containsAny(task.Description, "summarize", "summary"):
		system, field = researchSummarizePrompt, "summary"
	case containsAny(task.Description, "analyze", "analysis"):
		system, field = researchAnalyzePrompt, "analysis"
	}

	text, err := a.complete(ctx, system, task.Description)
	if err != nil {
		return nil, err
	}
	return &Outcome{Payload: map[string]any{field: text}}, nil
}

// Resume implements Agent: synthesize the completed report sections into a
// single document, degrading over failed sections.
func (a *ResearchAgent) Resume(ctx context.Context, task models.Task, continuation string, results []models.SubTaskResult) (*Outcome, error) {
	var cont researchContinuation
	if err := json.Unmarshal([]byte(continuation), &cont); err != nil {
		return nil, fmt.Errorf("decode continuation: %w", err)
	}

	var sections []string
	failed := 0
	for _, res := range results {
		if res.Status != models.TaskStatusCompleted {
			failed++
			a.log.Warn("report section failed, degrading",
				zap.String("task_id", task.ID),
				zap.String("sub_task_id", res.TaskID),
				zap.String("error", res.Error))
			continue
		}
		for _, v := range res.Result {
			if s, ok := v.(string); ok {
				sections = append(sections, s)
			}
		}
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("all %d report sections failed", len(results))
	}

	text, err := a.complete(ctx, researchSynthesisPrompt,
		fmt.Sprintf("Report topic: %s\n\nSections:\n\n%s", cont.Topic, strings.Join(sections, "\n\n---\n\n")))
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"report":             text,
		"sections_total":     len(results),
		"sections_completed": len(results) - failed,
	}
	if failed > 0 {
		payload["partial"] = true
	}
	return &Outcome{Payload: payload}, nil
}

func (a *ResearchAgent) complete(ctx context.Context, system, prompt string) (string, error) {
	var text string
	err := a.policy.Do(ctx, func() error {
		var err error
		text, err = a.completer.Complete(ctx, llm.Request{
			System:      system,
			Prompt:      prompt,
			MaxTokens:   1000,
			Temperature: 0.7,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("language completion: %w", err)
	}
	return text, nil
}
