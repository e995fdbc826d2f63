package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/agents"
	"github.com/openmanus/manus/internal/classifier"
	"github.com/openmanus/manus/internal/config"
	"github.com/openmanus/manus/internal/llm"
	"github.com/openmanus/manus/internal/logging"
	"github.com/openmanus/manus/internal/marketdata"
	"github.com/openmanus/manus/internal/registry"
	"github.com/openmanus/manus/internal/retry"
	"github.com/openmanus/manus/internal/scheduler"
	"github.com/openmanus/manus/pkg/models"
)

// engine bundles the wired delegation stack for the CLI commands.
type engine struct {
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	log       *zap.Logger
}

func buildLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Environment)
}

// buildEngine constructs the full stack from configuration: collaborators,
// registry, classifier, agents, and scheduler. Nothing is global; every
// dependency is passed in explicitly.
func buildEngine(cfg *config.Config, log *zap.Logger) (*engine, error) {
	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}

	market := marketdata.NewHTTPClient(marketdata.HTTPConfig{
		APIKey:            cfg.MarketData.APIKey,
		BaseURL:           cfg.MarketData.BaseURL,
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
		CacheTTL:          cfg.MarketData.CacheTTL,
	})

	infos, err := agentFleet(cfg)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	for _, info := range infos {
		if err := reg.Register(info); err != nil {
			return nil, fmt.Errorf("register agent %s: %w", info.ID, err)
		}
	}

	policy := retry.DefaultPolicy()
	agentList := []agents.Agent{
		agents.NewResearchAgent("research", completer, policy, log.Named("research")),
		agents.NewCodingAgent("coding", completer, policy, log.Named("coding")),
		agents.NewStockScreenerAgent("stock-screener", market, policy, log.Named("screener")),
		agents.NewTechnicalAnalysisAgent("technical-analysis", market, completer, policy, log.Named("technical")),
		agents.NewFundamentalAnalysisAgent("fundamental-analysis", market, completer, policy, log.Named("fundamental")),
	}

	cls := classifier.New(log.Named("classifier"), classifier.WithCompleter(completer))
	sched := scheduler.New(
		scheduler.Config{
			Workers:           cfg.Engine.Workers,
			MaxAssignAttempts: cfg.Engine.MaxAssignAttempts,
			RequeueDelay:      cfg.Engine.RequeueDelay,
		},
		scheduler.NewStore(), reg, cls, agentList, log.Named("scheduler"),
	)

	return &engine{scheduler: sched, registry: reg, log: log}, nil
}

func buildCompleter(cfg *config.Config) (llm.Completer, error) {
	switch cfg.LLM.Provider {
	case "openai":
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:             cfg.LLM.OpenAI.Model,
			APIKey:            cfg.LLM.OpenAI.APIKey,
			RequestsPerSecond: cfg.LLM.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "", "anthropic":
		c, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			Model:             anthropic.Model(cfg.LLM.Anthropic.Model),
			APIKey:            cfg.LLM.Anthropic.APIKey,
			UseAWSBedrock:     cfg.LLM.Anthropic.UseAWSBedrock,
			AWSRegion:         cfg.LLM.Anthropic.AWSRegion,
			AWSProfile:        cfg.LLM.Anthropic.AWSProfile,
			RequestsPerSecond: cfg.LLM.Anthropic.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// agentFleet loads the capability descriptors, from the configured file or
// the built-in set. A descriptor file must keep the built-in agent IDs since
// those name the agent implementations.
func agentFleet(cfg *config.Config) ([]models.AgentInfo, error) {
	if cfg.Agents.DescriptorFile != "" {
		return registry.LoadDescriptors(cfg.Agents.DescriptorFile)
	}
	return registry.DefaultDescriptors(cfg.Agents.MaxConcurrency), nil
}
