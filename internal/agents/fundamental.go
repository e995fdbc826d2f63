package agents

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

const fundamentalNarrativePrompt = "You are a financial analyst. Interpret these fundamental metrics for a retail " +
	"investor. Be factual and concise; do not give personalized advice."

// FundamentalAnalysisAgent evaluates financial ratios and statement growth
// from the domain-data collaborator and optionally asks the
// language-completion collaborator for a narrative. It never requests
// collaboration.
type FundamentalAnalysisAgent struct {
	id        string
	data      marketdata.Client
	completer llm.Completer // optional narrative
	policy    retry.Policy
	log       *zap.Logger
}

// NewFundamentalAnalysisAgent creates a FundamentalAnalysisAgent. completer
// may be nil.
func NewFundamentalAnalysisAgent(id string, data marketdata.Client, completer llm.Completer, policy retry.Policy, log *zap.Logger) *FundamentalAnalysisAgent {
	return &FundamentalAnalysisAgent{id: id, data: data, completer: completer, policy: policy, log: log}
}

// ID implements Agent.
func (a *FundamentalAnalysisAgent) ID() string { return a.id }

// Execute implements Agent.
func (a *FundamentalAnalysisAgent) Execute(ctx context.Context, task models.Task) (*Outcome, error) {
	symbol, err := firstTicker(task)
	if err != nil {
		return nil, err
	}

	dataPolicy := a.policy
	dataPolicy.Retryable = marketdata.Retryable

	var ratios *marketdata.Ratios
	err = dataPolicy.Do(ctx, func() error {
		var err error
		ratios, err = a.data.Ratios(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ratios for %s: %w", symbol, err)
	}

	var statements []marketdata.IncomeStatement
	err = dataPolicy.Do(ctx, func() error {
		var err error
		statements, err = a.data.IncomeStatements(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("income statements for %s: %w", symbol, err)
	}

	payload := map[string]any{
		"symbol": symbol,
		"ratios": map[string]any{
			"price_earnings": ratios.PriceEarnings.InexactFloat64(),
			"price_to_book":  ratios.PriceToBook.InexactFloat64(),
			"price_to_sales": ratios.PriceToSales.InexactFloat64(),
			"debt_to_equity": ratios.DebtToEquity.InexactFloat64(),
			"dividend_yield": ratios.DividendYield.InexactFloat64(),
		},
		"valuation": assessValuation(ratios),
	}

	// Statements arrive most recent first; growth compares the two latest
	// fiscal years.
	if len(statements) >= 2 {
		growth := map[string]any{}
		if g, ok := growthRate(statements[1].Revenue, statements[0].Revenue); ok {
			growth["revenue_pct"] = g
		}
		if g, ok := growthRate(statements[1].NetIncome, statements[0].NetIncome); ok {
			growth["earnings_pct"] = g
		}
		payload["growth"] = growth
	}

	if a.completer != nil {
		narrativePolicy := a.policy
		narrativePolicy.Retryable = llm.Retryable
		var narrative string
		err := narrativePolicy.Do(ctx, func() error {
			var err error
			narrative, err = a.completer.Complete(ctx, llm.Request{
				System:      fundamentalNarrativePrompt,
				Prompt:      fmt.Sprintf("Symbol %s, metrics: %v", symbol, payload),
				MaxTokens:   600,
				Temperature: 0.3,
			})
			return err
		})
		if err != nil {
			a.log.Warn("narrative completion failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			payload["narrative"] = narrative
		}
	}

	return &Outcome{Payload: payload}, nil
}

// Resume implements Agent.
func (a *FundamentalAnalysisAgent) Resume(context.Context, models.Task, string, []models.SubTaskResult) (*Outcome, error) {
	return nil, ErrNotResumable
}

// assessValuation buckets the P/E ratio into a coarse label.
func assessValuation(r *marketdata.Ratios) string {
	pe := r.PriceEarnings
	switch {
	case pe.Sign() <= 0:
		return "unprofitable"
	case pe.LessThan(decimal.NewFromInt(15)):
		return "value"
	case pe.LessThan(decimal.NewFromInt(30)):
		return "fair"
	default:
		return "growth-premium"
	}
}

// growthRate returns the percentage change from prev to latest. It reports
// false when prev is zero.
func growthRate(prev, latest decimal.Decimal) (float64, bool) {
	if prev.IsZero() {
		return 0, false
	}
	change := latest.Sub(prev).Div(prev.Abs()).Mul(decimal.NewFromInt(100))
	f, _ := change.Float64()
	return f, true
}
