// Package classifier maps a free-form task description to an ordered set of
// capability tags. Keyword signals decide first; when they are silent the
// classifier may consult the language-completion collaborator to extract
// tags from the closed vocabulary.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/pkg/models"
)

// ErrNoCapabilityMatch indicates no known tag could be extracted above the
// minimum confidence threshold. Callers recover by routing to the
// general-purpose research agent.
var ErrNoCapabilityMatch = errors.New("classifier: no capability match")

const extractionSystemPrompt = "You are a task router. " +
	"Given a task description, answer with a comma-separated list of matching " +
	"capability tags chosen only from this vocabulary: %s. " +
	"Answer with tags only, nothing else."

// Classifier scores descriptions against the capability vocabulary.
type Classifier struct {
	completer llm.Completer // optional, used when keywords are silent
	minHits   int
	log       *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCompleter enables LLM-assisted extraction when keyword matching finds
// nothing.
func WithCompleter(c llm.Completer) Option {
	return func(cl *Classifier) { cl.completer = c }
}

// WithMinHits sets the minimum keyword hits required for a tag to qualify.
// The default is 1.
func WithMinHits(n int) Option {
	return func(cl *Classifier) {
		if n > 0 {
			cl.minHits = n
		}
	}
}

// New creates a Classifier.
func New(log *zap.Logger, opts ...Option) *Classifier {
	cl := &Classifier{minHits: 1, log: log}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Classify returns the capability tags required by the description, ordered
// most specific first. Keyword scoring is fully deterministic; the LLM
// fallback depends on the collaborator's own determinism, so callers must
// tolerate non-bit-identical repeats on that path.
func (cl *Classifier) Classify(ctx context.Context, description string) ([]models.CapabilityTag, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: empty description", ErrNoCapabilityMatch)
	}

	if tags := cl.keywordTags(description); len(tags) > 0 {
		return tags, nil
	}

	if cl.completer != nil {
		tags, err := cl.llmTags(ctx, description)
		if err != nil {
			cl.log.Warn("llm-assisted classification failed", zap.Error(err))
		} else if len(tags) > 0 {
			return tags, nil
		}
	}

	return nil, ErrNoCapabilityMatch
}

// keywordTags scores every vocabulary tag by keyword hits and returns the
// qualifying tags ordered by hits descending, specificity ascending.
func (cl *Classifier) keywordTags(description string) []models.CapabilityTag {
	lower := strings.ToLower(description)

	type scored struct {
		tag  models.CapabilityTag
		hits int
	}
	var qualified []scored
	for _, tag := range models.AllCapabilities {
		hits := 0
		for _, kw := range capabilityKeywords[tag] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= cl.minHits {
			qualified = append(qualified, scored{tag: tag, hits: hits})
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].hits != qualified[j].hits {
			return qualified[i].hits > qualified[j].hits
		}
		return qualified[i].tag.Specificity() < qualified[j].tag.Specificity()
	})

	tags := make([]models.CapabilityTag, len(qualified))
	for i, s := range qualified {
		tags[i] = s.tag
	}
	return tags
}

// llmTags asks the completer to pick tags from the vocabulary and keeps only
// valid answers, ordered by specificity.
func (cl *Classifier) llmTags(ctx context.Context, description string) ([]models.CapabilityTag, error) {
	vocab := make([]string, len(models.AllCapabilities))
	for i, tag := range models.AllCapabilities {
		vocab[i] = string(tag)
	}

	answer, err := cl.completer.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(extractionSystemPrompt, strings.Join(vocab, ", ")),
		Prompt:      description,
		MaxTokens:   64,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[models.CapabilityTag]bool)
	var tags []models.CapabilityTag
	for _, part := range strings.Split(answer, ",") {
		tag := models.CapabilityTag(strings.ToLower(strings.TrimSpace(part)))
		if tag.Valid() && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Specificity() < tags[j].Specificity()
	})
	return tags, nil
}
