package registry

import (
	"errors"
	"reflect"
	"testing"

	"github.com/openmanus/manus/pkg/models"
)

func mustRegister(t *testing.T, r *Registry, id string, weights map[models.CapabilityTag]float64, maxConc int) {
	t.Helper()
	err := r.Register(models.AgentInfo{
		ID:             id,
		Name:           id,
		Descriptor:     models.CapabilityDescriptor{Weights: weights},
		MaxConcurrency: maxConc,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", id, err)
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := New()
	mustRegister(t, r, "research", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 2)

	err := r.Register(models.AgentInfo{
		ID:             "research",
		Descriptor:     models.CapabilityDescriptor{Weights: map[models.CapabilityTag]float64{models.CapResearch: 1.0}},
		MaxConcurrency: 2,
	})
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("Register() duplicate error = %v, want ErrDuplicateAgent", err)
	}
}

func TestRegistry_Candidates_WeightWins(t *testing.T) {
	// Spec scenario: research specialist (weight 1.0) beats a generalist
	// declaring research at 0.3, both idle.
	r := New()
	mustRegister(t, r, "generalist", map[models.CapabilityTag]float64{
		models.CapCodeGeneration: 1.0,
		models.CapResearch:       0.3,
	}, 2)
	mustRegister(t, r, "research", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 2)

	got := r.Candidates([]models.CapabilityTag{models.CapResearch})
	if len(got) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(got))
	}
	if got[0].AgentID != "research" {
		t.Errorf("top candidate = %s, want research", got[0].AgentID)
	}
}

func TestRegistry_Candidates_ExcludesNonDeclaring(t *testing.T) {
	r := New()
	mustRegister(t, r, "coding", map[models.CapabilityTag]float64{models.CapCodeGeneration: 1.0}, 2)
	mustRegister(t, r, "screener", map[models.CapabilityTag]float64{models.CapStockScreening: 1.0}, 2)

	got := r.Candidates([]models.CapabilityTag{models.CapStockScreening})
	if len(got) != 1 || got[0].AgentID != "screener" {
		t.Fatalf("candidates = %v, want only screener", got)
	}
}

func TestRegistry_Candidates_LoadPenalty(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 4)
	mustRegister(t, r, "b", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 4)

	// Load a twice: score drops to 1/3 against b's 1/1.
	if err := r.Reserve("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Reserve("a"); err != nil {
		t.Fatal(err)
	}

	got := r.Candidates([]models.CapabilityTag{models.CapResearch})
	if got[0].AgentID != "b" {
		t.Errorf("top candidate = %s, want b (lower load)", got[0].AgentID)
	}
}

func TestRegistry_Candidates_TieBreaksByRegistrationOrder(t *testing.T) {
	r := New()
	mustRegister(t, r, "second-weight", map[models.CapabilityTag]float64{models.CapResearch: 0.8}, 2)
	mustRegister(t, r, "third-weight", map[models.CapabilityTag]float64{models.CapResearch: 0.8}, 2)

	got := r.Candidates([]models.CapabilityTag{models.CapResearch})
	if got[0].AgentID != "second-weight" {
		t.Errorf("top candidate = %s, want second-weight (registered first)", got[0].AgentID)
	}
}

func TestRegistry_Candidates_Deterministic(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", map[models.CapabilityTag]float64{models.CapResearch: 0.6, models.CapCodeGeneration: 0.5}, 3)
	mustRegister(t, r, "b", map[models.CapabilityTag]float64{models.CapResearch: 0.6}, 3)
	mustRegister(t, r, "c", map[models.CapabilityTag]float64{models.CapCodeGeneration: 1.0}, 3)

	tags := []models.CapabilityTag{models.CapResearch, models.CapCodeGeneration}
	first := r.Candidates(tags)
	for i := 0; i < 25; i++ {
		if got := r.Candidates(tags); !reflect.DeepEqual(got, first) {
			t.Fatalf("Candidates() repeat %d = %v, want %v", i, got, first)
		}
	}
}

func TestRegistry_Reserve_AtCapacity(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 2)

	if err := r.Reserve("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Reserve("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Reserve("a"); !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("third Reserve() error = %v, want ErrAtCapacity", err)
	}

	if err := r.Release("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Reserve("a"); err != nil {
		t.Fatalf("Reserve() after Release error = %v", err)
	}
}

func TestRegistry_Release_WithoutReservation(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", map[models.CapabilityTag]float64{models.CapResearch: 1.0}, 1)

	if err := r.Release("a"); err == nil {
		t.Fatal("Release() without reservation should error")
	}
}

func TestRegistry_UnknownAgent(t *testing.T) {
	r := New()
	if err := r.Reserve("ghost"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Reserve(ghost) error = %v, want ErrUnknownAgent", err)
	}
	if err := r.Release("ghost"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Release(ghost) error = %v, want ErrUnknownAgent", err)
	}
	if _, err := r.Load("ghost"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Load(ghost) error = %v, want ErrUnknownAgent", err)
	}
}

func TestDefaultDescriptors_AllValid(t *testing.T) {
	infos := DefaultDescriptors(2)
	if len(infos) != 5 {
		t.Fatalf("len(descriptors) = %d, want 5", len(infos))
	}

	r := New()
	seen := make(map[models.CapabilityTag]bool)
	for _, info := range infos {
		if err := r.Register(info); err != nil {
			t.Fatalf("Register(%s) error = %v", info.ID, err)
		}
		for tag := range info.Descriptor.Weights {
			seen[tag] = true
		}
	}
	for _, tag := range models.AllCapabilities {
		if !seen[tag] {
			t.Errorf("no default agent declares %q", tag)
		}
	}
}

func TestDefaultDescriptors_ScreeningRoutesOnlyToScreener(t *testing.T) {
	r := New()
	for _, info := range DefaultDescriptors(2) {
		if err := r.Register(info); err != nil {
			t.Fatalf("Register(%s) error = %v", info.ID, err)
		}
	}

	// Load the screener up to capacity; the analysis agents must not start
	// outranking it, since they cannot run a screening request.
	for i := 0; i < 2; i++ {
		if err := r.Reserve("stock-screener"); err != nil {
			t.Fatalf("Reserve error = %v", err)
		}
		candidates := r.Candidates([]models.CapabilityTag{models.CapStockScreening})
		if len(candidates) != 1 || candidates[0].AgentID != "stock-screener" {
			t.Fatalf("candidates at load %d = %+v, want only stock-screener", i+1, candidates)
		}
	}
}
