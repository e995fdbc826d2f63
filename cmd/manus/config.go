package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmanus/manus/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify manus configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/manus/config.yaml
Project-specific overrides can be placed in .manus.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("llm.provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("llm.anthropic.api_key: %s\n", maskSecret(cfg.LLM.Anthropic.APIKey))
	fmt.Printf("llm.anthropic.model: %s\n", cfg.LLM.Anthropic.Model)
	fmt.Printf("llm.openai.api_key: %s\n", maskSecret(cfg.LLM.OpenAI.APIKey))
	fmt.Printf("llm.openai.model: %s\n", cfg.LLM.OpenAI.Model)
	fmt.Printf("market_data.api_key: %s\n", maskSecret(cfg.MarketData.APIKey))
	fmt.Printf("market_data.cache_ttl: %s\n", cfg.MarketData.CacheTTL)
	fmt.Printf("engine.workers: %d\n", cfg.Engine.Workers)
	fmt.Printf("engine.max_assign_attempts: %d\n", cfg.Engine.MaxAssignAttempts)
	fmt.Printf("engine.requeue_delay: %s\n", cfg.Engine.RequeueDelay)
	fmt.Printf("agents.max_concurrency: %d\n", cfg.Agents.MaxConcurrency)
	fmt.Printf("agents.descriptor_file: %s\n", cfg.Agents.DescriptorFile)
	fmt.Printf("telegram.token: %s\n", maskSecret(cfg.Telegram.Token))
	fmt.Printf("telegram.history_limit: %d\n", cfg.Telegram.HistoryLimit)
	fmt.Printf("log.level: %s\n", cfg.Log.Level)
	fmt.Printf("log.environment: %s\n", cfg.Log.Environment)
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "****"
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "llm.provider":
		return cfg.LLM.Provider, nil
	case "llm.anthropic.api_key":
		return maskSecret(cfg.LLM.Anthropic.APIKey), nil
	case "llm.anthropic.model":
		return cfg.LLM.Anthropic.Model, nil
	case "llm.openai.api_key":
		return maskSecret(cfg.LLM.OpenAI.APIKey), nil
	case "llm.openai.model":
		return cfg.LLM.OpenAI.Model, nil
	case "market_data.api_key":
		return maskSecret(cfg.MarketData.APIKey), nil
	case "market_data.cache_ttl":
		return cfg.MarketData.CacheTTL.String(), nil
	case "engine.workers":
		return strconv.Itoa(cfg.Engine.Workers), nil
	case "engine.max_assign_attempts":
		return strconv.Itoa(cfg.Engine.MaxAssignAttempts), nil
	case "engine.requeue_delay":
		return cfg.Engine.RequeueDelay.String(), nil
	case "agents.max_concurrency":
		return strconv.Itoa(cfg.Agents.MaxConcurrency), nil
	case "agents.descriptor_file":
		return cfg.Agents.DescriptorFile, nil
	case "telegram.token":
		return maskSecret(cfg.Telegram.Token), nil
	case "telegram.history_limit":
		return strconv.Itoa(cfg.Telegram.HistoryLimit), nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.environment":
		return cfg.Log.Environment, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "llm.provider":
		if value != "anthropic" && value != "openai" {
			return fmt.Errorf("unknown provider %q (want anthropic or openai)", value)
		}
		cfg.LLM.Provider = value
	case "llm.anthropic.api_key":
		cfg.LLM.Anthropic.APIKey = value
	case "llm.anthropic.model":
		cfg.LLM.Anthropic.Model = value
	case "llm.openai.api_key":
		cfg.LLM.OpenAI.APIKey = value
	case "llm.openai.model":
		cfg.LLM.OpenAI.Model = value
	case "market_data.api_key":
		cfg.MarketData.APIKey = value
	case "market_data.cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for cache_ttl: %w", err)
		}
		cfg.MarketData.CacheTTL = d
	case "engine.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workers: %w", err)
		}
		cfg.Engine.Workers = n
	case "engine.max_assign_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_assign_attempts: %w", err)
		}
		cfg.Engine.MaxAssignAttempts = n
	case "engine.requeue_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for requeue_delay: %w", err)
		}
		cfg.Engine.RequeueDelay = d
	case "agents.max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrency: %w", err)
		}
		cfg.Agents.MaxConcurrency = n
	case "agents.descriptor_file":
		cfg.Agents.DescriptorFile = value
	case "telegram.token":
		cfg.Telegram.Token = value
	case "telegram.history_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for history_limit: %w", err)
		}
		cfg.Telegram.HistoryLimit = n
	case "log.level":
		cfg.Log.Level = value
	case "log.environment":
		cfg.Log.Environment = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
