package classifier

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/pkg/models"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.Request) (string, error) {
	f.calls++
	return f.answer, f.err
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        []models.CapabilityTag
	}{
		{
			name:        "research task",
			description: "Research the history of the transistor and summarize the key milestones",
			want:        []models.CapabilityTag{models.CapResearch},
		},
		{
			name:        "coding task",
			description: "Write a function that parses CSV files and refactor the old parser",
			want:        []models.CapabilityTag{models.CapCodeGeneration},
		},
		{
			name:        "screening task",
			description: "Screen the S&P 500 for a watchlist of value stocks",
			want:        []models.CapabilityTag{models.CapStockScreening},
		},
		{
			name:        "technical analysis task",
			description: "Run RSI and MACD indicators on TSLA and describe the trend",
			want:        []models.CapabilityTag{models.CapTechnicalAnalysis},
		},
		{
			name:        "fundamental analysis task",
			description: "Analyze AAPL earnings and valuation from the latest income statement",
			want:        []models.CapabilityTag{models.CapFundamentalAnalysis},
		},
		{
			name:        "mixed task orders specific tag first on tie",
			description: "Screen for dividend stocks", // one screening hit, one fundamental hit
			want:        []models.CapabilityTag{models.CapStockScreening, models.CapFundamentalAnalysis},
		},
	}

	cl := New(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cl.Classify(context.Background(), tt.description)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	cl := New(zap.NewNop())
	desc := "Screen tech stocks by earnings trend and chart indicators"

	first, err := cl.Classify(context.Background(), desc)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := cl.Classify(context.Background(), desc)
		if err != nil {
			t.Fatalf("Classify() repeat error = %v", err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("Classify() repeat %d = %v, want %v", i, got, first)
		}
	}
}

func TestClassify_NoMatchWithoutCompleter(t *testing.T) {
	cl := New(zap.NewNop())
	_, err := cl.Classify(context.Background(), "qwzx blorp")
	if !errors.Is(err, ErrNoCapabilityMatch) {
		t.Fatalf("Classify() error = %v, want ErrNoCapabilityMatch", err)
	}
}

func TestClassify_EmptyDescription(t *testing.T) {
	cl := New(zap.NewNop())
	_, err := cl.Classify(context.Background(), "   ")
	if !errors.Is(err, ErrNoCapabilityMatch) {
		t.Fatalf("Classify() error = %v, want ErrNoCapabilityMatch", err)
	}
}

func TestClassify_LLMFallback(t *testing.T) {
	fake := &fakeCompleter{answer: "research, technical-analysis"}
	cl := New(zap.NewNop(), WithCompleter(fake))

	got, err := cl.Classify(context.Background(), "qwzx blorp")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	// Ordered by specificity regardless of the collaborator's ordering.
	want := []models.CapabilityTag{models.CapTechnicalAnalysis, models.CapResearch}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify() = %v, want %v", got, want)
	}
	if fake.calls != 1 {
		t.Errorf("completer calls = %d, want 1", fake.calls)
	}
}

func TestClassify_LLMFallbackSkippedWhenKeywordsHit(t *testing.T) {
	fake := &fakeCompleter{answer: "code-generation"}
	cl := New(zap.NewNop(), WithCompleter(fake))

	if _, err := cl.Classify(context.Background(), "summarize this research paper"); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("completer calls = %d, want 0 (keywords matched)", fake.calls)
	}
}

func TestClassify_LLMFallbackIgnoresUnknownTags(t *testing.T) {
	fake := &fakeCompleter{answer: "astrology, research, research"}
	cl := New(zap.NewNop(), WithCompleter(fake))

	got, err := cl.Classify(context.Background(), "qwzx blorp")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := []models.CapabilityTag{models.CapResearch}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify() = %v, want %v", got, want)
	}
}

func TestClassify_LLMFailureSurfacesNoMatch(t *testing.T) {
	fake := &fakeCompleter{err: llm.ErrUnavailable}
	cl := New(zap.NewNop(), WithCompleter(fake))

	_, err := cl.Classify(context.Background(), "qwzx blorp")
	if !errors.Is(err, ErrNoCapabilityMatch) {
		t.Fatalf("Classify() error = %v, want ErrNoCapabilityMatch", err)
	}
}
