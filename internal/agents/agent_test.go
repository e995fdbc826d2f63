package agents

import (
	"context"
	"reflect"
	"testing"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

// oneShot is a retry policy that never re-runs, keeping tests fast.
func oneShot() retry.Policy {
	return retry.Policy{MaxAttempts: 1}
}

// fakeCompleter scripts language-model responses for agent tests.
type fakeCompleter struct {
	fn    func(req llm.Request) (string, error)
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	return f.fn(req)
}

// fakeMarket serves canned market data keyed by symbol.
type fakeMarket struct {
	symbols    []marketdata.Symbol
	prices     map[string][]marketdata.Price
	pricesErr  map[string]error
	ratios     map[string]*marketdata.Ratios
	statements map[string][]marketdata.IncomeStatement

	priceCalls int
}

func (f *fakeMarket) Symbols(_ context.Context, offset, limit int) ([]marketdata.Symbol, error) {
	if offset >= len(f.symbols) {
		return nil, marketdata.ErrNotFound
	}
	end := offset + limit
	if end > len(f.symbols) {
		end = len(f.symbols)
	}
	return f.symbols[offset:end], nil
}

func (f *fakeMarket) Prices(_ context.Context, symbol string) ([]marketdata.Price, error) {
	f.priceCalls++
	if err, ok := f.pricesErr[symbol]; ok {
		return nil, err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return nil, marketdata.ErrNotFound
	}
	return p, nil
}

func (f *fakeMarket) Ratios(_ context.Context, symbol string) (*marketdata.Ratios, error) {
	r, ok := f.ratios[symbol]
	if !ok {
		return nil, marketdata.ErrNotFound
	}
	return r, nil
}

func (f *fakeMarket) IncomeStatements(_ context.Context, symbol string) ([]marketdata.IncomeStatement, error) {
	s, ok := f.statements[symbol]
	if !ok {
		return nil, marketdata.ErrNotFound
	}
	return s, nil
}

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        []string
	}{
		{
			name:        "single symbol",
			description: "Technical analysis of AAPL with RSI and MACD",
			want:        []string{"AAPL"},
		},
		{
			name:        "two symbols in mention order",
			description: "Compare MSFT and GOOGL earnings",
			want:        []string{"MSFT", "GOOGL"},
		},
		{
			name:        "duplicates collapse",
			description: "AAPL vs AAPL last year",
			want:        []string{"AAPL"},
		},
		{
			name:        "stopwords excluded",
			description: "THE trend FOR tech stocks IN the US",
			want:        nil,
		},
		{
			name:        "lowercase ignored",
			description: "analyze apple stock trends",
			want:        nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTickers(tt.description)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractTickers(%q) = %v, want %v", tt.description, got, tt.want)
			}
		})
	}
}

func TestOutcomeNeedsCollaboration(t *testing.T) {
	var nilOutcome *Outcome
	if nilOutcome.NeedsCollaboration() {
		t.Error("nil outcome should not need collaboration")
	}
	if (&Outcome{Payload: map[string]any{"ok": true}}).NeedsCollaboration() {
		t.Error("payload-only outcome should not need collaboration")
	}
	collab := &Outcome{SubTasks: []models.SubTaskRequest{{Description: "x"}}}
	if !collab.NeedsCollaboration() {
		t.Error("outcome with sub-tasks should need collaboration")
	}
}
