// Package models defines the shared data types for the delegation engine.
package models

import "fmt"

// CapabilityTag is a domain label identifying a task's required expertise.
// The tag set is closed: extending it means adding a new agent variant and
// descriptor, not changing the routing algorithm.
type CapabilityTag string

const (
	// CapResearch covers information gathering, summarization, and analysis.
	CapResearch CapabilityTag = "research"
	// CapCodeGeneration covers code generation, review, and refactoring.
	CapCodeGeneration CapabilityTag = "code-generation"
	// CapStockScreening covers filtering stock universes against criteria.
	CapStockScreening CapabilityTag = "stock-screening"
	// CapTechnicalAnalysis covers indicator-based price analysis.
	CapTechnicalAnalysis CapabilityTag = "technical-analysis"
	// CapFundamentalAnalysis covers financial-statement analysis.
	CapFundamentalAnalysis CapabilityTag = "fundamental-analysis"
)

// AllCapabilities lists every known tag, most specific first. The ordering is
// used as the deterministic tie-break when classification scores are equal.
var AllCapabilities = []CapabilityTag{
	CapStockScreening,
	CapTechnicalAnalysis,
	CapFundamentalAnalysis,
	CapCodeGeneration,
	CapResearch,
}

// Valid returns true if the tag is a known capability.
func (t CapabilityTag) Valid() bool {
	for _, known := range AllCapabilities {
		if t == known {
			return true
		}
	}
	return false
}

// Specificity returns the tag's rank in AllCapabilities, lower being more
// specific. Unknown tags rank last.
func (t CapabilityTag) Specificity() int {
	for i, known := range AllCapabilities {
		if t == known {
			return i
		}
	}
	return len(AllCapabilities)
}

// CapabilityDescriptor declares the domains an agent serves and how strongly.
type CapabilityDescriptor struct {
	// Weights maps each declared tag to a confidence weight in (0, 1].
	Weights map[CapabilityTag]float64 `json:"weights" yaml:"weights"`
}

// Weight returns the descriptor's weight for a tag, or 0 if undeclared.
func (d CapabilityDescriptor) Weight(tag CapabilityTag) float64 {
	return d.Weights[tag]
}

// Validate checks that every declared tag is known and every weight is in (0, 1].
func (d CapabilityDescriptor) Validate() error {
	if len(d.Weights) == 0 {
		return fmt.Errorf("descriptor declares no capabilities")
	}
	for tag, w := range d.Weights {
		if !tag.Valid() {
			return fmt.Errorf("unknown capability tag %q", tag)
		}
		if w <= 0 || w > 1 {
			return fmt.Errorf("capability %q weight %v outside (0, 1]", tag, w)
		}
	}
	return nil
}

// AgentInfo is the registry's view of an agent: identity, declared
// capabilities, and the concurrency cap enforced by reservations.
type AgentInfo struct {
	// ID is the unique identifier for the agent.
	ID string `json:"id" yaml:"id"`
	// Name is the human-readable agent name.
	Name string `json:"name" yaml:"name"`
	// Descriptor declares the agent's capability tags and weights.
	Descriptor CapabilityDescriptor `json:"descriptor" yaml:"descriptor"`
	// MaxConcurrency caps how many tasks the agent may own at once.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
}

// Validate checks the agent info is well formed.
func (a AgentInfo) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if a.MaxConcurrency < 1 {
		return fmt.Errorf("agent %s: max_concurrency must be positive", a.ID)
	}
	if err := a.Descriptor.Validate(); err != nil {
		return fmt.Errorf("agent %s: %w", a.ID, err)
	}
	return nil
}
