package factory

import (
	"fmt"

	"github.com/quickchat/todo-triage/internal/adapters/bedrock"
	"github.com/quickchat/todo-triage/internal/adapters/gemini"
	"github.com/quickchat/todo-triage/internal/adapters/openai"
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
)

// SummarizerFactory creates summarizers based on configuration
type SummarizerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizerFactory creates a new summarizer factory
func NewSummarizerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SummarizerFactory {
	return &SummarizerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates a new summarizer based on the configured provider
func (f *SummarizerFactory) CreateSummarizer() (core.Summarizer, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateSummarizer()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateSummarizer()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateSummarizer()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
