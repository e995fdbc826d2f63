package agents

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/pkg/models"
)

const technicalNarrativePrompt = "You are a technical analyst. Interpret these indicator readings for a retail " +
	"investor. Be factual and concise; do not give personalized advice."

// TechnicalAnalysisAgent computes indicator readings from the domain-data
// collaborator's price history and optionally asks the language-completion
// collaborator for a narrative. It never requests collaboration.
type TechnicalAnalysisAgent struct {
	id        string
	data      marketdata.Client
	completer llm.Completer // optional narrative
	policy    retry.Policy
	log       *zap.Logger
}

// NewTechnicalAnalysisAgent creates a TechnicalAnalysisAgent. completer may
// be nil, in which case the payload carries indicator readings only.
func NewTechnicalAnalysisAgent(id string, data marketdata.Client, completer llm.Completer, policy retry.Policy, log *zap.Logger) *TechnicalAnalysisAgent {
	return &TechnicalAnalysisAgent{id: id, data: data, completer: completer, policy: policy, log: log}
}

// ID implements Agent.
func (a *TechnicalAnalysisAgent) ID() string { return a.id }

// Execute implements Agent.
func (a *TechnicalAnalysisAgent) Execute(ctx context.Context, task models.Task) (*Outcome, error) {
	symbol, err := firstTicker(task)
	if err != nil {
		return nil, err
	}

	dataPolicy := a.policy
	dataPolicy.Retryable = marketdata.Retryable

	var prices []marketdata.Price
	err = dataPolicy.Do(ctx, func() error {
		var err error
		prices, err = a.data.Prices(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("price history for %s: %w", symbol, marketdata.ErrNotFound)
	}

	// The API returns most recent first; the math wants oldest first.
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[len(prices)-1-i] = p.Close.InexactFloat64()
	}
	latest := closes[len(closes)-1]

	indicators := map[string]any{}
	bullish, bearish := 0, 0
	vote := func(name string, value float64, isBullish bool) {
		signal := "bearish"
		if isBullish {
			signal = "bullish"
			bullish++
		} else {
			bearish++
		}
		indicators[name] = map[string]any{"value": value, "signal": signal}
	}

	for _, period := range []int{20, 50, 200} {
		if v := SMA(closes, period); !math.IsNaN(v) {
			vote(fmt.Sprintf("sma_%d", period), v, latest > v)
		}
	}
	for _, span := range []int{12, 26, 50} {
		if v := EMA(closes, span); !math.IsNaN(v) {
			vote(fmt.Sprintf("ema_%d", span), v, latest > v)
		}
	}
	if v := RSI(closes, 14); !math.IsNaN(v) {
		signal := "neutral"
		switch {
		case v >= 70:
			signal = "overbought"
			bearish++
		case v <= 30:
			signal = "oversold"
			bullish++
		}
		indicators["rsi_14"] = map[string]any{"value": v, "signal": signal}
	}
	if macd, signal := MACD(closes); !math.IsNaN(macd) {
		vote("macd", macd-signal, macd > signal)
	}
	if mid, upper, lower := Bollinger(closes, 20); !math.IsNaN(mid) {
		position := "inside"
		switch {
		case latest > upper:
			position = "above"
			bearish++
		case latest < lower:
			position = "below"
			bullish++
		}
		indicators["bollinger_20"] = map[string]any{
			"middle": mid, "upper": upper, "lower": lower, "position": position,
		}
	}

	outlook := "neutral"
	if bullish > bearish {
		outlook = "bullish"
	} else if bearish > bullish {
		outlook = "bearish"
	}

	payload := map[string]any{
		"symbol":       symbol,
		"latest_close": latest,
		"samples":      len(closes),
		"indicators":   indicators,
		"outlook":      outlook,
	}

	if a.completer != nil {
		narrativePolicy := a.policy
		narrativePolicy.Retryable = llm.Retryable
		var narrative string
		err := narrativePolicy.Do(ctx, func() error {
			var err error
			narrative, err = a.completer.Complete(ctx, llm.Request{
				System:      technicalNarrativePrompt,
				Prompt:      fmt.Sprintf("Symbol %s, latest close %.2f, outlook %s, indicators: %v", symbol, latest, outlook, indicators),
				MaxTokens:   600,
				Temperature: 0.3,
			})
			return err
		})
		if err != nil {
			// Indicator readings already answer the task; the narrative is
			// best effort.
			a.log.Warn("narrative completion failed", zap.String("symbol", symbol), zap.Error(err))
		} else {
			payload["narrative"] = narrative
		}
	}

	return &Outcome{Payload: payload}, nil
}

// Resume implements Agent.
func (a *TechnicalAnalysisAgent) Resume(context.Context, models.Task, string, []models.SubTaskResult) (*Outcome, error) {
	return nil, ErrNotResumable
}
