package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quickchat/todo-triage/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a todo item does not exist
var ErrNotFound = errors.New("todo item not found")

// SQLiteRepository is a SQLite implementation of the TodoRepository interface
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteRepository creates a new SQLite todo repository
func NewSQLiteRepository(dbPath string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			title TEXT,
			description TEXT,
			priority TEXT,
			raw_priority TEXT,
			deadline TEXT,
			requester TEXT,
			action_type TEXT,
			source_message_id TEXT,
			created_at TEXT,
			updated_at TEXT,
			status TEXT,
			snooze_until TEXT,
			recipient_type TEXT,
			source_type TEXT,
			is_top3 INTEGER DEFAULT 0,
			evidence TEXT,
			persona_name TEXT,
			project TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Index for the active-item query
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveAll inserts or replaces the given items
func (r *SQLiteRepository) SaveAll(ctx context.Context, items []core.TodoItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO todos (
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
func (r *SQLiteRepository) LoadActive(ctx context.Context) ([]core.TodoItem, error) {
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
func (r *SQLiteRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET status='done', updated_at=? WHERE id=?`,
		at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark todo done: %w", err)
	}
	return requireRow(res)
}

// Snooze hides one item until the given time
func (r *SQLiteRepository) Snooze(ctx context.Context, id string, until time.Time, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET status='snoozed', snooze_until=?, updated_at=? WHERE id=?`,
		until.Format(time.RFC3339), at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to snooze todo: %w", err)
	}
	return requireRow(res)
}

// ReleaseSnoozed returns expired snoozes to pending state
func (r *SQLiteRepository) ReleaseSnoozed(ctx context.Context, now time.Time) (int, error) {
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
func (r *SQLiteRepository) UpdateTop3Flags(ctx context.Context, flags map[string]bool) error {
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
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return fmt.Errorf("failed to delete todo items: %w", err)
	}
	return nil
}

// CleanupOlderThan removes items created more than the given number of days ago
func (r *SQLiteRepository) CleanupOlderThan(ctx context.Context, days int) (int, error) {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (core.TodoItem, error) {
	var item core.TodoItem
	var priority, rawPriority, status, recipientType string
	var deadline, snoozeUntil, project sql.NullString
	var createdAt, updatedAt, evidence string
	var isTop3 int

	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &priority, &rawPriority,
		&deadline, &item.Requester, &item.ActionType, &item.SourceMessageID,
		&createdAt, &updatedAt, &status, &snoozeUntil, &recipientType,
		&item.SourceType, &isTop3, &evidence, &item.PersonaName, &project,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan todo row: %w", err)
	}

	item.Priority = core.Priority(priority)
	item.RawPriority = core.Priority(rawPriority)
	item.Status = core.Status(status)
	item.RecipientType = core.RecipientType(recipientType)
	item.IsTop3 = isTop3 != 0
	item.Project = project.String
	item.Deadline = parseTime(deadline)
	item.SnoozeUntil = parseTime(snoozeUntil)

	// Malformed timestamps degrade to the zero value, not an error.
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if evidence != "" {
		if err := json.Unmarshal([]byte(evidence), &item.Evidence); err != nil {
			item.Evidence = nil
		}
	}
	return item, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
