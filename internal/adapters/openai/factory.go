package openai

import (
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates OpenAI-backed capabilities
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for OpenAI adapters
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates a new OpenAI summarizer
func (f *Factory) CreateSummarizer() (core.Summarizer, error) {
	openaiCfg := f.cfg.GetOpenAI()
	client := openai.NewClient(openaiCfg.APIKey)

	return NewSummarizer(
		client,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}

// CreateRuleParser creates a new OpenAI rule parser
func (f *Factory) CreateRuleParser() (core.RuleParser, error) {
	openaiCfg := f.cfg.GetOpenAI()
	client := openai.NewClient(openaiCfg.APIKey)

	return NewRuleParser(
		client,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		f.logger,
	), nil
}
