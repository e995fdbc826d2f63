package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

// defaultUniverseSize bounds how many listed symbols are screened when the
// task names no symbols of its own.
const defaultUniverseSize = 10

// priceBoundPattern captures "under $50", "below 50", "over $10", "above 10".
var priceBoundPattern = regexp.MustCompile(`(?i)\b(under|below|over|above)\s+\$?(\d+(?:\.\d+)?)`)

// ScreenCriteria are the price filters parsed from a screening request.
type ScreenCriteria struct {
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal `json:"max_price,omitempty"`
}

// screenerContinuation carries the matched symbols across the analysis
// fan-out.
type screenerContinuation struct {
	Matches  []string       `json:"matches"`
	Screened int            `json:"screened"`
	Criteria ScreenCriteria `json:"criteria"`
}

// StockScreenerAgent filters a symbol universe against price criteria, then
// fans out per-symbol technical and fundamental analyses and merges them on
// resume. Its sub-task failure policy is to degrade: failed analyses are
// dropped from the merged result rather than failing the screen.
type StockScreenerAgent struct {
	id     string
	data   marketdata.Client
	policy retry.Policy
	log    *zap.Logger
}

// NewStockScreenerAgent creates a StockScreenerAgent.
func NewStockScreenerAgent(id string, data marketdata.Client, policy retry.Policy, log *zap.Logger) *StockScreenerAgent {
	policy.Retryable = marketdata.Retryable
	return &StockScreenerAgent{id: id, data: data, policy: policy, log: log}
}

// ID implements Agent.
func (a *StockScreenerAgent) ID() string { return a.id }

// Execute implements Agent.
func (a *StockScreenerAgent) Execute(ctx context.Context, task models.Task) (*Outcome, error) {
	criteria := ParseCriteria(task.Description)

	universe := extractTickers(task.Description)
	if len(universe) == 0 {
		var listed []marketdata.Symbol
		err := a.policy.Do(ctx, func() error {
			var err error
			listed, err = a.data.Symbols(ctx, 0, defaultUniverseSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("symbol universe: %w", err)
		}
		for _, s := range listed {
			universe = append(universe, s.Symbol)
		}
	}

	var matches []string
	for _, symbol := range universe {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var prices []marketdata.Price
		err := a.policy.Do(ctx, func() error {
			var err error
			prices, err = a.data.Prices(ctx, symbol)
			return err
		})
		if err != nil {
			// A symbol that cannot be quoted is skipped, not fatal to the
			// screen.
			a.log.Warn("skipping unquotable symbol", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(prices) == 0 {
			continue
		}
		if criteria.Matches(prices[0].Close) {
			matches = append(matches, symbol)
		}
	}

	if len(matches) == 0 {
		return &Outcome{Payload: map[string]any{
			"matches":        []any{},
			"total_screened": len(universe),
			"total_matches":  0,
		}}, nil
	}

	cont, err := json.Marshal(screenerContinuation{
		Matches:  matches,
		Screened: len(universe),
		Criteria: criteria,
	})
	if err != nil {
		return nil, fmt.Errorf("encode continuation: %w", err)
	}

	var subs []models.SubTaskRequest
	for _, symbol := range matches {
		subs = append(subs,
			models.SubTaskRequest{
				Description:  fmt.Sprintf("Technical analysis of %s with trend indicators", symbol),
				Capabilities: []models.CapabilityTag{models.CapTechnicalAnalysis},
			},
			models.SubTaskRequest{
				Description:  fmt.Sprintf("Fundamental analysis of %s earnings and valuation", symbol),
				Capabilities: []models.CapabilityTag{models.CapFundamentalAnalysis},
			},
		)
	}
	return &Outcome{SubTasks: subs, Continuation: string(cont)}, nil
}

// Resume implements Agent: merge the per-symbol analyses, degrading over
// failed sub-tasks.
func (a *StockScreenerAgent) Resume(_ context.Context, task models.Task, continuation string, results []models.SubTaskResult) (*Outcome, error) {
	var cont screenerContinuation
	if err := json.Unmarshal([]byte(continuation), &cont); err != nil {
		return nil, fmt.Errorf("decode continuation: %w", err)
	}

	analyses := make(map[string]map[string]any, len(cont.Matches))
	for _, symbol := range cont.Matches {
		analyses[symbol] = map[string]any{"symbol": symbol}
	}

	failed := 0
	for _, res := range results {
		if res.Status != models.TaskStatusCompleted {
			failed++
			a.log.Warn("analysis sub-task failed, degrading",
				zap.String("task_id", task.ID),
				zap.String("sub_task_id", res.TaskID),
				zap.String("error", res.Error))
			continue
		}
		symbol, _ := res.Result["symbol"].(string)
		entry, ok := analyses[symbol]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(res.Description), "fundamental") {
			entry["fundamental"] = res.Result
		} else {
			entry["technical"] = res.Result
		}
	}

	merged := make([]any, 0, len(cont.Matches))
	for _, symbol := range cont.Matches {
		merged = append(merged, analyses[symbol])
	}

	payload := map[string]any{
		"matches":        merged,
		"total_screened": cont.Screened,
		"total_matches":  len(cont.Matches),
	}
	if failed > 0 {
		payload["partial"] = true
		payload["failed_analyses"] = failed
	}
	return &Outcome{Payload: payload}, nil
}

// ParseCriteria extracts price bounds from a screening request.
func ParseCriteria(description string) ScreenCriteria {
	var c ScreenCriteria
	for _, m := range priceBoundPattern.FindAllStringSubmatch(description, -1) {
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		bound := decimal.NewFromFloat(value)
		switch strings.ToLower(m[1]) {
		case "under", "below":
			c.MaxPrice = &bound
		case "over", "above":
			c.MinPrice = &bound
		}
	}
	return c
}

// Matches reports whether a price satisfies the criteria.
func (c ScreenCriteria) Matches(price decimal.Decimal) bool {
	if c.MinPrice != nil && price.LessThan(*c.MinPrice) {
		return false
	}
	if c.MaxPrice != nil && price.GreaterThan(*c.MaxPrice) {
		return false
	}
	return true
}
