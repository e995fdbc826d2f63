// Package config handles configuration loading for manus. It supports XDG
// config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for manus.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Agents     AgentsConfig     `mapstructure:"agents"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig selects and configures the language-model provider.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider  string          `mapstructure:"provider"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	UseAWSBedrock     bool    `mapstructure:"use_aws_bedrock"`
	AWSRegion         string  `mapstructure:"aws_region"`
	AWSProfile        string  `mapstructure:"aws_profile"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// MarketDataConfig holds financialdata.net API settings.
type MarketDataConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// EngineConfig tunes the scheduler.
type EngineConfig struct {
	Workers           int           `mapstructure:"workers"`
	MaxAssignAttempts int           `mapstructure:"max_assign_attempts"`
	RequeueDelay      time.Duration `mapstructure:"requeue_delay"`
}

// AgentsConfig tunes the agent fleet.
type AgentsConfig struct {
	// MaxConcurrency is the per-agent task cap when no descriptor file
	// overrides it.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// DescriptorFile optionally points at a YAML capability-descriptor
	// file replacing the built-in fleet.
	DescriptorFile string `mapstructure:"descriptor_file"`
}

// TelegramConfig holds the Telegram front-end settings.
type TelegramConfig struct {
	Token             string  `mapstructure:"token"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	// HistoryLimit is how many conversation turns are replayed per user.
	HistoryLimit int `mapstructure:"history_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY,
// FINANCIALDATA_API_KEY, TELEGRAM_BOT_TOKEN)
// 2. Project config (.manus.yaml in current directory or a parent)
// 3. User config (~/.config/manus/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	expand(cfg)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	expand(cfg)
	return cfg, nil
}

// Watch reloads the config file at path whenever it changes and hands the
// fresh Config to onChange. Unparseable edits are reported and the previous
// config stays in effect.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}
	bindEnv(v)

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("unmarshaling config: %w", err))
			}
			return
		}
		expand(cfg)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.anthropic.api_key", cfg.LLM.Anthropic.APIKey)
	v.Set("llm.anthropic.model", cfg.LLM.Anthropic.Model)
	v.Set("llm.anthropic.use_aws_bedrock", cfg.LLM.Anthropic.UseAWSBedrock)
	v.Set("llm.anthropic.aws_region", cfg.LLM.Anthropic.AWSRegion)
	v.Set("llm.anthropic.aws_profile", cfg.LLM.Anthropic.AWSProfile)
	v.Set("llm.anthropic.requests_per_second", cfg.LLM.Anthropic.RequestsPerSecond)
	v.Set("llm.openai.api_key", cfg.LLM.OpenAI.APIKey)
	v.Set("llm.openai.model", cfg.LLM.OpenAI.Model)
	v.Set("llm.openai.requests_per_second", cfg.LLM.OpenAI.RequestsPerSecond)
	v.Set("market_data.api_key", cfg.MarketData.APIKey)
	v.Set("market_data.base_url", cfg.MarketData.BaseURL)
	v.Set("market_data.requests_per_second", cfg.MarketData.RequestsPerSecond)
	v.Set("market_data.cache_ttl", cfg.MarketData.CacheTTL.String())
	v.Set("engine.workers", cfg.Engine.Workers)
	v.Set("engine.max_assign_attempts", cfg.Engine.MaxAssignAttempts)
	v.Set("engine.requeue_delay", cfg.Engine.RequeueDelay.String())
	v.Set("agents.max_concurrency", cfg.Agents.MaxConcurrency)
	v.Set("agents.descriptor_file", cfg.Agents.DescriptorFile)
	v.Set("telegram.token", cfg.Telegram.Token)
	v.Set("telegram.messages_per_second", cfg.Telegram.MessagesPerSecond)
	v.Set("telegram.history_limit", cfg.Telegram.HistoryLimit)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.environment", cfg.Log.Environment)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if one
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "")
	v.SetDefault("llm.anthropic.use_aws_bedrock", false)
	v.SetDefault("llm.anthropic.requests_per_second", 2.0)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", "")
	v.SetDefault("llm.openai.requests_per_second", 2.0)

	v.SetDefault("market_data.api_key", "")
	v.SetDefault("market_data.base_url", "")
	v.SetDefault("market_data.requests_per_second", 4.0)
	v.SetDefault("market_data.cache_ttl", "5m")

	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.max_assign_attempts", 5)
	v.SetDefault("engine.requeue_delay", "200ms")

	v.SetDefault("agents.max_concurrency", 3)
	v.SetDefault("agents.descriptor_file", "")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.messages_per_second", 1.0)
	v.SetDefault("telegram.history_limit", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("market_data.api_key", "FINANCIALDATA_API_KEY")
	v.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
}

// expand resolves ${VAR} references in secret-bearing fields.
func expand(cfg *Config) {
	cfg.LLM.Anthropic.APIKey = os.ExpandEnv(cfg.LLM.Anthropic.APIKey)
	cfg.LLM.OpenAI.APIKey = os.ExpandEnv(cfg.LLM.OpenAI.APIKey)
	cfg.MarketData.APIKey = os.ExpandEnv(cfg.MarketData.APIKey)
	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
}

// getUserConfigDir returns the XDG config directory for manus.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "manus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "manus")
	}
	return filepath.Join(home, ".config", "manus")
}

// findProjectConfig searches for .manus.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".manus.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
