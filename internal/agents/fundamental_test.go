package agents

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/pkg/models"
)

func TestFundamentalAgentExecute(t *testing.T) {
	market := &fakeMarket{
		ratios: map[string]*marketdata.Ratios{
			"MSFT": {
				Symbol:        "MSFT",
				PriceEarnings: decimal.NewFromInt(12),
				PriceToBook:   decimal.NewFromFloat(2.5),
				DividendYield: decimal.NewFromFloat(0.8),
			},
		},
		statements: map[string][]marketdata.IncomeStatement{
			"MSFT": {
				{Symbol: "MSFT", FiscalYear: 2025, Revenue: decimal.NewFromInt(110), NetIncome: decimal.NewFromInt(22)},
				{Symbol: "MSFT", FiscalYear: 2024, Revenue: decimal.NewFromInt(100), NetIncome: decimal.NewFromInt(20)},
			},
		},
	}
	agent := NewFundamentalAnalysisAgent("fundamental", market, nil, oneShot(), zap.NewNop())

	out, err := agent.Execute(context.Background(), models.Task{
		ID:          "t1",
		Description: "Fundamental analysis of MSFT",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.Payload["symbol"]; got != "MSFT" {
		t.Errorf("symbol = %v, want MSFT", got)
	}
	if got := out.Payload["valuation"]; got != "value" {
		t.Errorf("valuation at P/E 12 = %v, want value", got)
	}

	ratios, ok := out.Payload["ratios"].(map[string]any)
	if !ok {
		t.Fatalf("ratios missing from payload %v", out.Payload)
	}
	if pe := ratios["price_earnings"].(float64); math.Abs(pe-12) > 1e-9 {
		t.Errorf("price_earnings = %v, want 12", pe)
	}

	growth, ok := out.Payload["growth"].(map[string]any)
	if !ok {
		t.Fatalf("growth missing from payload %v", out.Payload)
	}
	if g := growth["revenue_pct"].(float64); math.Abs(g-10) > 1e-9 {
		t.Errorf("revenue growth = %v, want 10", g)
	}
	if g := growth["earnings_pct"].(float64); math.Abs(g-10) > 1e-9 {
		t.Errorf("earnings growth = %v, want 10", g)
	}
}

func TestFundamentalAgentSingleStatement(t *testing.T) {
	market := &fakeMarket{
		ratios: map[string]*marketdata.Ratios{
			"NEW": {Symbol: "NEW", PriceEarnings: decimal.NewFromInt(40)},
		},
		statements: map[string][]marketdata.IncomeStatement{
			"NEW": {{Symbol: "NEW", FiscalYear: 2025, Revenue: decimal.NewFromInt(10)}},
		},
	}
	agent := NewFundamentalAnalysisAgent("fundamental", market, nil, oneShot(), zap.NewNop())

	out, err := agent.Execute(context.Background(), models.Task{ID: "t1", Description: "Valuation of NEW"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := out.Payload["growth"]; ok {
		t.Error("growth needs two fiscal years, should be absent")
	}
	if got := out.Payload["valuation"]; got != "growth-premium" {
		t.Errorf("valuation at P/E 40 = %v, want growth-premium", got)
	}
}

func TestAssessValuation(t *testing.T) {
	tests := []struct {
		pe   float64
		want string
	}{
		{-3, "unprofitable"},
		{0, "unprofitable"},
		{14.9, "value"},
		{15, "fair"},
		{29.9, "fair"},
		{30, "growth-premium"},
	}
	for _, tt := range tests {
		r := &marketdata.Ratios{PriceEarnings: decimal.NewFromFloat(tt.pe)}
		if got := assessValuation(r); got != tt.want {
			t.Errorf("assessValuation(P/E %v) = %q, want %q", tt.pe, got, tt.want)
		}
	}
}

func TestGrowthRate(t *testing.T) {
	if g, ok := growthRate(decimal.NewFromInt(100), decimal.NewFromInt(150)); !ok || math.Abs(g-50) > 1e-9 {
		t.Errorf("growthRate(100, 150) = (%v, %v), want (50, true)", g, ok)
	}
	if g, ok := growthRate(decimal.NewFromInt(100), decimal.NewFromInt(80)); !ok || math.Abs(g+20) > 1e-9 {
		t.Errorf("growthRate(100, 80) = (%v, %v), want (-20, true)", g, ok)
	}
	if _, ok := growthRate(decimal.Zero, decimal.NewFromInt(5)); ok {
		t.Error("growthRate from zero should report false")
	}
	if g, ok := growthRate(decimal.NewFromInt(-100), decimal.NewFromInt(-50)); !ok || math.Abs(g-50) > 1e-9 {
		t.Errorf("growthRate(-100, -50) = (%v, %v), want (50, true)", g, ok)
	}
}

func TestFundamentalAgentErrors(t *testing.T) {
	agent := NewFundamentalAnalysisAgent("fundamental", &fakeMarket{}, nil, oneShot(), zap.NewNop())
	if _, err := agent.Execute(context.Background(), models.Task{ID: "t1", Description: "Value XYZ"}); !errors.Is(err, marketdata.ErrNotFound) {
		t.Errorf("Execute for unknown symbol = %v, want ErrNotFound", err)
	}
	if _, err := agent.Resume(context.Background(), models.Task{}, "", nil); !errors.Is(err, ErrNotResumable) {
		t.Errorf("Resume error = %v, want ErrNotResumable", err)
	}
}
