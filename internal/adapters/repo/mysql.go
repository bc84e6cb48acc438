package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/quickchat/todo-triage/internal/core"
	"go.uber.org/zap"
)

// MySQLRepository is a MySQL implementation of the TodoRepository interface
type MySQLRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLRepository creates a new MySQL todo repository
func NewMySQLRepository(dsn string, logger *zap.Logger) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id VARCHAR(64) PRIMARY KEY,
			title TEXT,
			description TEXT,
			priority VARCHAR(16),
			raw_priority VARCHAR(16),
			deadline VARCHAR(40),
			requester VARCHAR(255),
			action_type VARCHAR(32),
			source_message_id VARCHAR(255),
			created_at VARCHAR(40),
			updated_at VARCHAR(40),
			status VARCHAR(16),
			snooze_until VARCHAR(40),
			recipient_type VARCHAR(8),
			source_type VARCHAR(16),
			is_top3 TINYINT(1) DEFAULT 0,
			evidence TEXT,
			persona_name VARCHAR(255),
			project VARCHAR(255),
			INDEX idx_todos_status (status)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLRepository{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

// SaveAll inserts or replaces the given items
func (r *MySQLRepository) SaveAll(ctx context.Context, items []core.TodoItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		REPLACE INTO todos (
			id, title, description, priority, raw_priority, deadline,
			requester, action_type, source_message_id, created_at,
			updated_at, status, snooze_until, recipient_type, source_type,
			is_top3, evidence, persona_name, project
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		evidence, err := json.Marshal(item.Evidence)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			item.ID, item.Title, item.Description, string(item.Priority),
			string(item.RawPriority), formatTime(item.Deadline),
			item.Requester, item.ActionType, item.SourceMessageID,
			item.CreatedAt.Format(time.RFC3339), item.UpdatedAt.Format(time.RFC3339),
			string(item.Status), formatTime(item.SnoozeUntil),
			string(item.RecipientType), item.SourceType,
			boolToInt(item.IsTop3), string(evidence), item.PersonaName, item.Project,
		)
		if err != nil {
			return fmt.Errorf("failed to insert todo item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.Debug("Saved todo items", zap.Int("count", len(items)))
	return nil
}

// LoadActive returns all items not marked done, newest first
func (r *MySQLRepository) LoadActive(ctx context.Context) ([]core.TodoItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, priority, raw_priority, deadline,
		       requester, action_type, source_message_id, created_at,
		       updated_at, status, snooze_until, recipient_type, source_type,
		       is_top3, evidence, persona_name, project
		FROM todos
		WHERE status != 'done'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query todo items: %w", err)
	}
	defer rows.Close()

	var items []core.TodoItem
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkDone marks one item done
func (r *MySQLRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET status='done', updated_at=? WHERE id=?`,
		at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark todo done: %w", err)
	}
	return requireRow(res)
}

// Snooze hides one item until the given time
func (r *MySQLRepository) Snooze(ctx context.Context, id string, until time.Time, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET status='snoozed', snooze_until=?, updated_at=? WHERE id=?`,
		until.Format(time.RFC3339), at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to snooze todo: %w", err)
	}
	return requireRow(res)
}

// ReleaseSnoozed returns expired snoozes to pending state
func (r *MySQLRepository) ReleaseSnoozed(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE todos
		SET status='pending', snooze_until=NULL, updated_at=?
		WHERE status='snoozed'
		  AND snooze_until IS NOT NULL
		  AND snooze_until <= ?
	`, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to release snoozed todos: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpdateTop3Flags sets is_top3 for the given ids and clears it everywhere else
func (r *MySQLRepository) UpdateTop3Flags(ctx context.Context, flags map[string]bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE todos SET is_top3=0`); err != nil {
		return fmt.Errorf("failed to clear top-3 flags: %w", err)
	}
	for id, flagged := range flags {
		if !flagged {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE todos SET is_top3=1 WHERE id=?`, id); err != nil {
			return fmt.Errorf("failed to set top-3 flag: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteAll removes every stored item
func (r *MySQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return fmt.Errorf("failed to delete todo items: %w", err)
	}
	return nil
}

// CleanupOlderThan removes items created more than the given number of days ago
func (r *MySQLRepository) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE created_at < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up todo items: %w", err)
	}
	n, err := res.RowsAffected()
	if n > 0 {
		r.logger.Info("Cleaned up old todo items", zap.Int64("removed", n), zap.Int("days", days))
	}
	return int(n), err
}
