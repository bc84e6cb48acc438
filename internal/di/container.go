package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/quickchat/todo-triage/internal/adapters/local"
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/factory"
	"github.com/quickchat/todo-triage/internal/logging"
	"github.com/quickchat/todo-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := registerComponents(container); err != nil {
		return nil, err
	}

	return container, nil
}

// registerComponents wires everything downstream of config and logger.
// Shared between the server and CLI containers.
func registerComponents(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewSummarizerFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewRuleParserFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewRepositoryFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register summarizer
	if err := container.Provide(func(f *factory.SummarizerFactory) (core.Summarizer, error) {
		return f.CreateSummarizer()
	}); err != nil {
		return err
	}

	// Register rule parser
	if err := container.Provide(func(f *factory.RuleParserFactory) (core.RuleParser, error) {
		return f.CreateRuleParser()
	}); err != nil {
		return err
	}

	// Register todo repository
	if err := container.Provide(func(f *factory.RepositoryFactory) (core.TodoRepository, error) {
		return f.CreateTodoRepository()
	}); err != nil {
		return err
	}

	// Register local ranker and extractor
	if err := container.Provide(func(logger *zap.Logger) core.PriorityRanker {
		return local.NewHeuristicRanker(logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(logger *zap.Logger) core.ActionExtractor {
		return local.NewKeywordExtractor(logger)
	}); err != nil {
		return err
	}

	// Register pipeline components
	if err := container.Provide(core.NewRecipientPrecedenceFilter); err != nil {
		return err
	}
	if err := container.Provide(func(
		extractor core.ActionExtractor,
		summarizer core.Summarizer,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.ExtractionOrchestrator {
		return core.NewExtractionOrchestrator(extractor, summarizer, cfg.GetExtraction(), logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.PriorityRebalancer {
		return core.NewPriorityRebalancer(cfg.GetRebalance(), logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, parser core.RuleParser, logger *zap.Logger) *core.Top3Selector {
		return core.NewTop3Selector(cfg.GetTop3Rules(), parser, logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.PersonaResultCache {
		return core.NewPersonaResultCache(cfg.GetCacheCapacity(), logger)
	}); err != nil {
		return err
	}

	// Register synthesis service
	if err := container.Provide(func(
		ranker core.PriorityRanker,
		orchestrator *core.ExtractionOrchestrator,
		filter *core.RecipientPrecedenceFilter,
		rebalancer *core.PriorityRebalancer,
		selector *core.Top3Selector,
		cache *core.PersonaResultCache,
		repo core.TodoRepository,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.SynthesisService {
		return core.NewSynthesisService(
			ranker,
			orchestrator,
			filter,
			rebalancer,
			selector,
			cache,
			repo,
			cfg.GetSynthesis().TodoDedupThreshold,
			logger,
		)
	}); err != nil {
		return err
	}

	return nil
}
