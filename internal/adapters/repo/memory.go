package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quickchat/todo-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryRepository is an in-memory implementation of the TodoRepository interface
type MemoryRepository struct {
	items  map[string]core.TodoItem
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryRepository creates a new in-memory todo repository
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		items:  make(map[string]core.TodoItem),
		logger: logger,
	}
}

// SaveAll inserts or replaces the given items
func (r *MemoryRepository) SaveAll(ctx context.Context, items []core.TodoItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		r.items[item.ID] = item
	}
	r.logger.Debug("Saved todo items", zap.Int("count", len(items)))
	return nil
}

// LoadActive returns all items not marked done, most urgent first
func (r *MemoryRepository) LoadActive(ctx context.Context) ([]core.TodoItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []core.TodoItem
	for _, item := range r.items {
		if item.Status == core.StatusDone {
			continue
		}
		active = append(active, item)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// MarkDone marks one item done
func (r *MemoryRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = core.StatusDone
	item.UpdatedAt = at
	r.items[id] = item
	return nil
}

// Snooze hides one item until the given time
func (r *MemoryRepository) Snooze(ctx context.Context, id string, until time.Time, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = core.StatusSnoozed
	item.SnoozeUntil = &until
	item.UpdatedAt = at
	r.items[id] = item
	return nil
}

// ReleaseSnoozed returns expired snoozes to pending state
func (r *MemoryRepository) ReleaseSnoozed(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for id, item := range r.items {
		if item.Status != core.StatusSnoozed || item.SnoozeUntil == nil {
			continue
		}
		if item.SnoozeUntil.After(now) {
			continue
		}
		item.Status = core.StatusPending
		item.SnoozeUntil = nil
		item.UpdatedAt = now
		r.items[id] = item
		released++
	}
	return released, nil
}

// UpdateTop3Flags sets is_top3 for the given ids and clears it everywhere else
func (r *MemoryRepository) UpdateTop3Flags(ctx context.Context, flags map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, item := range r.items {
		item.IsTop3 = flags[id]
		r.items[id] = item
	}
	return nil
}

// DeleteAll removes every stored item
func (r *MemoryRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]core.TodoItem)
	return nil
}

// CleanupOlderThan removes items created more than the given number of days ago
func (r *MemoryRepository) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for id, item := range r.items {
		if item.CreatedAt.Before(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("Cleaned up old todo items", zap.Int("removed", removed), zap.Int("days", days))
	}
	return removed, nil
}
