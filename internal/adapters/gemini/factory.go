package gemini

import (
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Gemini-backed capabilities
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for Gemini adapters
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates a new Gemini summarizer
func (f *Factory) CreateSummarizer() (core.Summarizer, error) {
	geminiCfg := f.cfg.GetGemini()

	return NewSummarizer(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	)
}
