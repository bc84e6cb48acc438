package factory

import (
	"github.com/quickchat/todo-triage/internal/adapters/openai"
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
)

// RuleParserFactory creates natural-language rule parsers
type RuleParserFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewRuleParserFactory creates a new rule parser factory
func NewRuleParserFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *RuleParserFactory {
	return &RuleParserFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateRuleParser creates a rule parser, or nil when the configured
// provider cannot parse rules. A nil parser leaves the selector with
// heuristic parsing only, which is a supported degraded mode.
func (f *RuleParserFactory) CreateRuleParser() (core.RuleParser, error) {
	llmConfig := f.cfg.GetLLM()

	if llmConfig.Provider == "openai" {
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateRuleParser()
	}

	f.logger.Info("No rule parser for provider, using heuristic parsing only",
		zap.String("provider", llmConfig.Provider))
	return nil, nil
}
