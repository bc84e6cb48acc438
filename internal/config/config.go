package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/todo-triage/")
	v.AddConfigPath("$HOME/.todo-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("TODO_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Extraction defaults
	v.SetDefault("extraction.min_text_len", 15)
	v.SetDefault("extraction.greeting_max_len", 40)
	v.SetDefault("extraction.status_update_max_len", 200)
	v.SetDefault("extraction.min_description_len", 10)
	v.SetDefault("extraction.dedup_threshold", 0.9)
	v.SetDefault("extraction.batch_size", 50)

	// Synthesis defaults
	v.SetDefault("synthesis.todo_dedup_threshold", 0.7)
	v.SetDefault("synthesis.user_email", "")
	v.SetDefault("synthesis.persona_name", "")

	// Rebalance defaults
	v.SetDefault("rebalance.high_ratio", 0.3)
	v.SetDefault("rebalance.low_ratio", 0.2)

	// Top3 defaults
	v.SetDefault("top3.priority_high", 3.0)
	v.SetDefault("top3.priority_medium", 2.0)
	v.SetDefault("top3.priority_low", 1.0)
	v.SetDefault("top3.deadline_emphasis", 24.0)
	v.SetDefault("top3.deadline_base", 1.0)
	v.SetDefault("top3.evidence_per_item", 0.1)
	v.SetDefault("top3.evidence_max_bonus", 0.5)
	v.SetDefault("top3.cc_penalty", 0.7)

	// Cache defaults
	v.SetDefault("cache.capacity", 10)

	// Repository defaults
	v.SetDefault("repository.type", "memory")
	v.SetDefault("repository.sqlite_path", "/data/todo_triage.db")
	v.SetDefault("repository.mysql_dsn", "user:password@tcp(localhost:3306)/todo_triage")
	v.SetDefault("repository.retention_days", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
