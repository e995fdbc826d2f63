// Package registry tracks the live set of agents and their load counters.
// Reservation is the single point of concurrency control that keeps an
// agent's load under its concurrency cap.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/openmanus/manus/pkg/models"
)

var (
	// ErrAtCapacity indicates the agent has no free execution slot.
	ErrAtCapacity = errors.New("registry: agent at capacity")
	// ErrUnknownAgent indicates the agent ID is not registered.
	ErrUnknownAgent = errors.New("registry: unknown agent")
	// ErrDuplicateAgent indicates the agent ID is already registered.
	ErrDuplicateAgent = errors.New("registry: duplicate agent")
)

// Candidate is one ranked routing option.
type Candidate struct {
	// AgentID identifies the agent.
	AgentID string
	// Score is the capability match score at ranking time.
	Score float64
}

// entry is the registry's record for one agent. seq preserves registration
// order for the deterministic final tie-break.
type entry struct {
	info models.AgentInfo
	load int
	seq  int
}

// Registry holds registered agents and their current load. The registry
// exclusively owns the load counters; callers mutate them only through
// Reserve and Release.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds an agent to the registry.
func (r *Registry) Register(info models.AgentInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[info.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, info.ID)
	}
	r.entries[info.ID] = &entry{info: info, seq: r.nextSeq}
	r.nextSeq++
	return nil
}

// Candidates ranks agents for the requested tag set. The score is the sum of
// descriptor weights for requested tags, divided by (1 + current load).
// Agents declaring none of the tags are excluded. Ties break by lowest load,
// then by registration order, making the ranking fully deterministic for a
// given registry snapshot.
func (r *Registry) Candidates(tags []models.CapabilityTag) []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	type ranked struct {
		Candidate
		load int
		seq  int
	}
	var out []ranked
	for _, e := range r.entries {
		var sum float64
		for _, tag := range tags {
			sum += e.info.Descriptor.Weight(tag)
		}
		if sum == 0 {
			continue
		}
		out = append(out, ranked{
			Candidate: Candidate{AgentID: e.info.ID, Score: sum / float64(1+e.load)},
			load:      e.load,
			seq:       e.seq,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].load != out[j].load {
			return out[i].load < out[j].load
		}
		return out[i].seq < out[j].seq
	})

	candidates := make([]Candidate, len(out))
	for i, c := range out {
		candidates[i] = c.Candidate
	}
	return candidates
}

// Reserve atomically checks load against the agent's concurrency cap and
// claims a slot. It is the only way load increases.
func (r *Registry) Reserve(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if e.load >= e.info.MaxConcurrency {
		return fmt.Errorf("%w: %s", ErrAtCapacity, agentID)
	}
	e.load++
	return nil
}

// Release returns a previously reserved slot. Reserve and Release are always
// paired around an assignment's lifetime.
func (r *Registry) Release(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if e.load <= 0 {
		return fmt.Errorf("registry: release without reservation for %s", agentID)
	}
	e.load--
	return nil
}

// Load returns the agent's current load counter.
func (r *Registry) Load(agentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[agentID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return e.load, nil
}

// Info returns the registered info for an agent.
func (r *Registry) Info(agentID string) (models.AgentInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[agentID]
	if !ok {
		return models.AgentInfo{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return e.info, nil
}

// All returns every registered agent in registration order.
func (r *Registry) All() []models.AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AgentInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sortByRegistration(out, r.entries)
	return out
}

func sortByRegistration(infos []models.AgentInfo, entries map[string]*entry) {
	sort.Slice(infos, func(i, j int) bool {
		return entries[infos[i].ID].seq < entries[infos[j].ID].seq
	})
}
