package config

import "github.com/quickchat/todo-triage/internal/core"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// SynthesisConfig represents the pipeline-level configuration
type SynthesisConfig struct {
	TodoDedupThreshold float64
	UserEmail          string
	PersonaName        string
}

// RepositoryConfig represents the todo persistence configuration
type RepositoryConfig struct {
	Type          string
	SQLitePath    string
	MySQLDSN      string
	RetentionDays int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetExtraction returns the two-stage extraction configuration,
// starting from the built-in defaults so the phrase lists stay
// populated when the config file omits them.
func (c *Config) GetExtraction() core.ExtractionConfig {
	cfg := core.DefaultExtractionConfig()
	cfg.MinTextLen = c.GetInt("extraction.min_text_len")
	cfg.GreetingMaxLen = c.GetInt("extraction.greeting_max_len")
	cfg.StatusUpdateMaxLen = c.GetInt("extraction.status_update_max_len")
	cfg.MinDescriptionLen = c.GetInt("extraction.min_description_len")
	cfg.DedupThreshold = c.GetFloat64("extraction.dedup_threshold")
	cfg.BatchSize = c.GetInt("extraction.batch_size")
	if phrases := c.GetStringSlice("extraction.greeting_phrases"); len(phrases) > 0 {
		cfg.GreetingPhrases = phrases
	}
	if phrases := c.GetStringSlice("extraction.status_update_phrases"); len(phrases) > 0 {
		cfg.StatusUpdatePhrases = phrases
	}
	if keywords := c.GetStringSlice("extraction.action_keywords"); len(keywords) > 0 {
		cfg.ActionKeywords = keywords
	}
	return cfg
}

// GetSynthesis returns the pipeline-level configuration
func (c *Config) GetSynthesis() SynthesisConfig {
	return SynthesisConfig{
		TodoDedupThreshold: c.GetFloat64("synthesis.todo_dedup_threshold"),
		UserEmail:          c.GetString("synthesis.user_email"),
		PersonaName:        c.GetString("synthesis.persona_name"),
	}
}

// GetRebalance returns the priority rebalancing configuration
func (c *Config) GetRebalance() core.RebalanceConfig {
	cfg := core.DefaultRebalanceConfig()
	cfg.HighRatio = c.GetFloat64("rebalance.high_ratio")
	cfg.LowRatio = c.GetFloat64("rebalance.low_ratio")
	return cfg
}

// GetTop3Rules returns the top-3 weight configuration
func (c *Config) GetTop3Rules() core.Top3Rules {
	return core.Top3Rules{
		PriorityHigh:     c.GetFloat64("top3.priority_high"),
		PriorityMedium:   c.GetFloat64("top3.priority_medium"),
		PriorityLow:      c.GetFloat64("top3.priority_low"),
		DeadlineEmphasis: c.GetFloat64("top3.deadline_emphasis"),
		DeadlineBase:     c.GetFloat64("top3.deadline_base"),
		EvidencePerItem:  c.GetFloat64("top3.evidence_per_item"),
		EvidenceMaxBonus: c.GetFloat64("top3.evidence_max_bonus"),
		CCPenalty:        c.GetFloat64("top3.cc_penalty"),
	}
}

// GetCacheCapacity returns the persona result cache capacity
func (c *Config) GetCacheCapacity() int {
	return c.GetInt("cache.capacity")
}

// GetRepository returns the todo persistence configuration
func (c *Config) GetRepository() RepositoryConfig {
	return RepositoryConfig{
		Type:          c.GetString("repository.type"),
		SQLitePath:    c.GetString("repository.sqlite_path"),
		MySQLDSN:      c.GetString("repository.mysql_dsn"),
		RetentionDays: c.GetInt("repository.retention_days"),
	}
}
