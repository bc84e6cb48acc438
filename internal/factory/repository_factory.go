package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quickchat/todo-triage/internal/adapters/repo"
	"github.com/quickchat/todo-triage/internal/config"
	"github.com/quickchat/todo-triage/internal/core"
	"go.uber.org/zap"
)

// RepositoryFactory creates todo repositories based on configuration
type RepositoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTodoRepository creates a todo repository based on the configuration
func (f *RepositoryFactory) CreateTodoRepository() (core.TodoRepository, error) {
	repoCfg := f.cfg.GetRepository()

	switch repoCfg.Type {
	case "memory":
		return repo.NewMemoryRepository(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(repoCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return repo.NewSQLiteRepository(repoCfg.SQLitePath, f.logger)
	case "mysql":
		return repo.NewMySQLRepository(repoCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", repoCfg.Type)
	}
}

// GetRetentionDays returns the configured retention window
func (f *RepositoryFactory) GetRetentionDays() int {
	return f.cfg.GetRepository().RetentionDays
}
