package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/openmanus/manus/pkg/models"
)

// Property: for every agent, the load counter never exceeds max_concurrency
// no matter how reserve and release calls interleave across goroutines, and
// successful reservations never outnumber capacity at any observed instant.
func TestRegistry_LoadNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxConc := rapid.IntRange(1, 4).Draw(rt, "maxConcurrency")
		workers := rapid.IntRange(2, 8).Draw(rt, "workers")
		opsPerWorker := rapid.IntRange(1, 20).Draw(rt, "opsPerWorker")

		r := New()
		require.NoError(rt, r.Register(models.AgentInfo{
			ID:             "agent",
			Name:           "Agent",
			Descriptor:     models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{models.CapResearch: 1.0}},
			MaxConcurrency: maxConc,
		}))

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				held := 0
				for op := 0; op < opsPerWorker; op++ {
					if err := r.Reserve("agent"); err == nil {
						held++
					} else if !errors.Is(err, ErrAtCapacity) {
						rt.Errorf("Reserve() unexpected error: %v", err)
						return
					}

					load, err := r.Load("agent")
					if err != nil {
						rt.Errorf("Load() error: %v", err)
						return
					}
					if load > maxConc {
						rt.Errorf("observed load %d > max_concurrency %d", load, maxConc)
						return
					}

					if held > 0 && op%2 == 1 {
						if err := r.Release("agent"); err != nil {
							rt.Errorf("Release() error: %v", err)
							return
						}
						held--
					}
				}
				for ; held > 0; held-- {
					_ = r.Release("agent")
				}
			}()
		}
		wg.Wait()

		load, err := r.Load("agent")
		require.NoError(rt, err)
		require.Zero(rt, load, "all reservations released, load should be zero")
	})
}

// Property: Candidates never returns an agent whose descriptor covers none
// of the requested tags, and scores are non-increasing down the ranking.
func TestRegistry_CandidatesRankingInvariants(t *testing.T) {
	tagPool := models.AllCapabilities

	rapid.Check(t, func(rt *rapid.T) {
		r := New()
		agentCount := rapid.IntRange(1, 6).Draw(rt, "agents")
		declared := make(map[string]models.CapabilityDescriptor)

		for i := 0; i < agentCount; i++ {
			weights := make(map[models.CapabilityTag]float64)
			for _, tag := range tagPool {
				if rapid.Bool().Draw(rt, "declares") {
					weights[tag] = float64(rapid.IntRange(1, 10).Draw(rt, "weight")) / 10
				}
			}
			if len(weights) == 0 {
				weights[models.CapResearch] = 0.5
			}
			id := string(rune('a' + i))
			info := models.AgentInfo{
				ID:             id,
				Name:           id,
				Descriptor:     models.CapabilityDescriptor{Weights: weights},
				MaxConcurrency: rapid.IntRange(1, 3).Draw(rt, "cap"),
			}
			require.NoError(rt, r.Register(info))
			declared[id] = info.Descriptor
		}

		tagN := rapid.IntRange(1, len(tagPool)).Draw(rt, "tagN")
		tags := tagPool[:tagN]

		got := r.Candidates(tags)
		for i, c := range got {
			var sum float64
			for _, tag := range tags {
				sum += declared[c.AgentID].Weight(tag)
			}
			require.Greater(rt, sum, 0.0, "candidate %s declares no requested tag", c.AgentID)
			if i > 0 {
				require.GreaterOrEqual(rt, got[i-1].Score, c.Score, "ranking not monotonic")
			}
		}
	})
}
