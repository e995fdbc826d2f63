// Package agents implements the specialized workers of the delegation
// engine. Each variant turns a task description into collaborator calls;
// scheduling, state, and load accounting stay with the scheduler.
package agents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/openmanus/manus/pkg/models"
)

// ErrNotResumable indicates a resume call reached a variant that never
// requests collaboration.
var ErrNotResumable = errors.New("agents: variant does not support resume")

// Outcome is the result of one execution step. Exactly one of the three
// shapes is populated: a payload (done), a collaboration request (suspend),
// or an error returned through the Execute/Resume error value.
type Outcome struct {
	// Payload is the structured result when the task is done.
	Payload map[string]any
	// SubTasks requests delegation of further work before the task can
	// finish. The scheduler fans these out and calls Resume once all of
	// them are terminal.
	SubTasks []models.SubTaskRequest
	// Continuation carries variant-private state across the suspension so
	// Resume does not re-run completed work.
	Continuation string
}

// NeedsCollaboration reports whether the outcome suspends the task.
func (o *Outcome) NeedsCollaboration() bool {
	return o != nil && len(o.SubTasks) > 0
}

// Agent is the common execution contract over the five variants.
type Agent interface {
	// ID matches the agent's registry entry.
	ID() string
	// Execute runs the task from its description. A returned error ends the
	// task as failed; an Outcome either finishes it or requests collaboration.
	Execute(ctx context.Context, task models.Task) (*Outcome, error)
	// Resume continues a suspended task after fan-in. Sub-task failures
	// arrive as data in results; the variant's own policy decides whether
	// to degrade, retry, or propagate.
	Resume(ctx context.Context, task models.Task, continuation string, results []models.SubTaskResult) (*Outcome, error)
}

// tickerPattern matches candidate stock symbols: 1-5 uppercase letters.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// tickerStopwords are common uppercase words that are not symbols.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "AND": true, "THE": true, "FOR": true, "OF": true,
	"ON": true, "IN": true, "TO": true, "VS": true, "ETF": true, "USD": true,
	"RSI": true, "MACD": true, "SMA": true, "EMA": true, "PE": true,
	"EPS": true, "API": true, "AI": true, "US": true, "SP": true, "IPO": true,
}

// extractTickers pulls probable stock symbols out of a description,
// preserving first-mention order.
func extractTickers(description string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range tickerPattern.FindAllString(description, -1) {
		if tickerStopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// firstTicker returns the first probable symbol, or an error naming the task.
func firstTicker(task models.Task) (string, error) {
	tickers := extractTickers(task.Description)
	if len(tickers) == 0 {
		return "", fmt.Errorf("no stock symbol found in task %s description", task.ID)
	}
	return tickers[0], nil
}

// containsAny reports whether the lowercased description contains any of the
// given markers.
func containsAny(description string, markers ...string) bool {
	lower := strings.ToLower(description)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
