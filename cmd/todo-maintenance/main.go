package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/di"
	"github.com/quickchat/todo-triage/internal/factory"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the maintenance sweep
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run releases expired snoozes and applies the retention window
func run(
	logger *zap.Logger,
	service *core.SynthesisService,
	repo core.TodoRepository,
	repoFactory *factory.RepositoryFactory,
) error {
	defer logger.Sync()
	ctx := context.Background()

	released, err := service.ReleaseSnoozed(ctx)
	if err != nil {
		logger.Error("Failed to release snoozed todos", zap.Error(err))
		return err
	}
	logger.Info("Released snoozed todos", zap.Int("count", released))

	days := repoFactory.GetRetentionDays()
	removed, err := repo.CleanupOlderThan(ctx, days)
	if err != nil {
		logger.Error("Failed to clean up old todos", zap.Error(err))
		return err
	}
	logger.Info("Retention sweep complete", zap.Int("removed", removed), zap.Int("days", days))

	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}
	return nil
}
