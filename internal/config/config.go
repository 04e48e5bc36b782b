// Package config provides Viper-based configuration management for project-pilot
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/llm"
	"github.com/Jurkyy/project-pilot/internal/project"
)

// Config holds all configuration for the application
type Config struct {
	LLM     LLMConfig      `mapstructure:"llm"`
	Limits  project.Limits `mapstructure:"limits"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Output  OutputConfig   `mapstructure:"output"`
	Server  ServerConfig   `mapstructure:"server"`
	GitHub  GitHubConfig   `mapstructure:"github"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider       string          `mapstructure:"provider"`
	APIKey         string          `mapstructure:"api_key"`
	BaseURL        string          `mapstructure:"base_url"`
	Model          string          `mapstructure:"model"`
	MaxTokens      int             `mapstructure:"max_tokens"`
	Temperature    float32         `mapstructure:"temperature"`
	AttemptTimeout time.Duration   `mapstructure:"attempt_timeout"`
	OverallTimeout time.Duration   `mapstructure:"overall_timeout"`
	Retry          llm.RetryPolicy `mapstructure:"retry"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// ServerConfig holds serve-mode configuration
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	WorkspaceDir       string        `mapstructure:"workspace_dir"`
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	QueueSize          int           `mapstructure:"queue_size"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
}

// GitHubConfig holds GitHub-related configuration
type GitHubConfig struct {
	Token       string `mapstructure:"token"`
	Owner       string `mapstructure:"owner"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// Load reads configuration from .env, the config file and environment
// variables, in increasing order of precedence
func Load(cfgFile string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".project-pilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/project-pilot")
	}

	v.SetEnvPrefix("PROJECT_PILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv keeps the unprefixed variable names working
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.host", "PROJECT_PILOT_SERVER_HOST", "SERVER_HOST")
	_ = v.BindEnv("server.port", "PROJECT_PILOT_SERVER_PORT", "SERVER_PORT")
	_ = v.BindEnv("server.max_concurrent_tasks", "PROJECT_PILOT_SERVER_MAX_CONCURRENT_TASKS", "MAX_CONCURRENT_TASKS")
	_ = v.BindEnv("server.workspace_dir", "PROJECT_PILOT_SERVER_WORKSPACE_DIR", "TEMP_DIR")
	_ = v.BindEnv("github.token", "PROJECT_PILOT_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("github.owner", "PROJECT_PILOT_GITHUB_OWNER", "GITHUB_OWNER")
	_ = v.BindEnv("llm.provider", "PROJECT_PILOT_LLM_PROVIDER", "DEFAULT_MODEL")
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	retry := llm.DefaultRetryPolicy()
	limits := project.DefaultLimits()

	// LLM defaults
	v.SetDefault("llm.provider", string(credential.ProviderOpenAI))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.temperature", llm.DefaultTemperature)
	v.SetDefault("llm.attempt_timeout", 60*time.Second)
	v.SetDefault("llm.overall_timeout", 5*time.Minute)
	v.SetDefault("llm.retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("llm.retry.base_delay", retry.BaseDelay)
	v.SetDefault("llm.retry.max_delay", retry.MaxDelay)
	v.SetDefault("llm.retry.multiplier", retry.Multiplier)
	v.SetDefault("llm.retry.jitter", retry.JitterFactor)

	// Limits defaults
	v.SetDefault("limits.max_file_bytes", limits.MaxFileBytes)
	v.SetDefault("limits.max_total_bytes", limits.MaxTotalBytes)
	v.SetDefault("limits.max_files", limits.MaxFiles)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Output defaults
	v.SetDefault("output.colors", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workspace_dir", "./tmp")
	v.SetDefault("server.max_concurrent_tasks", 5)
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("server.task_timeout", 10*time.Minute)
	v.SetDefault("server.requests_per_minute", 30)

	// GitHub defaults
	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.author_name", "Project Pilot")
	v.SetDefault("github.author_email", "bot@project-pilot.dev")
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if _, err := credential.ParseProvider(cfg.LLM.Provider); err != nil {
		return err
	}

	if cfg.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", cfg.LLM.MaxTokens)
	}
	// a zero temperature is dropped from the request, so it cannot mean deterministic
	if cfg.LLM.Temperature <= 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be greater than 0 and at most 2, got %g", cfg.LLM.Temperature)
	}
	if cfg.LLM.AttemptTimeout <= 0 || cfg.LLM.OverallTimeout <= 0 {
		return fmt.Errorf("llm timeouts must be positive")
	}

	r := cfg.LLM.Retry
	if r.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("llm.retry.multiplier must be at least 1, got %g", r.Multiplier)
	}
	if r.JitterFactor < 0 || r.JitterFactor > 1 {
		return fmt.Errorf("llm.retry.jitter must be between 0 and 1, got %g", r.JitterFactor)
	}

	if cfg.Limits.MaxFileBytes < 0 || cfg.Limits.MaxTotalBytes < 0 || cfg.Limits.MaxFiles < 0 {
		return fmt.Errorf("limits must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	if cfg.Server.MaxConcurrentTasks < 1 {
		return fmt.Errorf("server.max_concurrent_tasks must be at least 1, got %d", cfg.Server.MaxConcurrentTasks)
	}

	return nil
}

// Provider returns the configured LLM provider
func (c *Config) Provider() credential.Provider {
	p, _ := credential.ParseProvider(c.LLM.Provider)
	return p
}

// APIKey picks the key from the flag value, the config file, or the
// provider's environment variable, in that order
func (c *Config) APIKey(flagValue string) string {
	return credential.FirstNonEmpty(flagValue, c.LLM.APIKey, os.Getenv(ProviderKeyEnv(c.Provider())))
}

// ProviderKeyEnv names the environment variable holding a provider's key
func ProviderKeyEnv(p credential.Provider) string {
	switch p {
	case credential.ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

