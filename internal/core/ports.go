package core

import (
	"context"
	"time"
)

// PriorityRanker orders messages by importance. External capability.
type PriorityRanker interface {
	Rank(ctx context.Context, messages []Message) ([]RankedMessage, error)
}

// ActionExtractor produces draft action candidates from messages.
// Cheap stage; no upper bound on candidate count.
type ActionExtractor interface {
	Extract(ctx context.Context, messages []Message, userEmail string) ([]ActionCandidate, error)
}

// Summarizer answers "does this message require action" for a batch of
// messages. Expensive stage; called once per verification batch.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message) ([]Verdict, error)
}

// ParsedRules is the structured form of a natural-language top-3
// instruction: per-category bonuses plus an optional reset request.
type ParsedRules struct {
	Reset      bool
	Weights    map[string]float64
	Requester  map[string]float64
	Keyword    map[string]float64
	ActionType map[string]float64
}

// RuleParser turns free-text top-3 instructions into structured
// boosts. External capability (an LLM call); application of the
// parsed rules is core logic and lives in Top3Selector.
type RuleParser interface {
	ParseRules(ctx context.Context, text string) (*ParsedRules, error)
}

// TodoRepository persists synthesized todo items. The storage format
// is owned by the adapter, not by this core.
type TodoRepository interface {
	SaveAll(ctx context.Context, items []TodoItem) error
	LoadActive(ctx context.Context) ([]TodoItem, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	Snooze(ctx context.Context, id string, until time.Time, at time.Time) error
	ReleaseSnoozed(ctx context.Context, now time.Time) (int, error)
	UpdateTop3Flags(ctx context.Context, flags map[string]bool) error
	DeleteAll(ctx context.Context) error
	CleanupOlderThan(ctx context.Context, days int) (int, error)
}
