package core

import (
	"time"

	"go.uber.org/zap"
)

// recipientRank orders recipient types for precedence filtering.
// TO beats CC beats BCC; anything else ranks below BCC.
func recipientRank(rt RecipientType) int {
	switch rt {
	case RecipientTo:
		return 3
	case RecipientCC:
		return 2
	case RecipientBCC:
		return 1
	default:
		return 0
	}
}

type emailGroupKey struct {
	sender  string
	subject string
	date    time.Time
}

// RecipientPrecedenceFilter collapses TO/CC/BCC duplicates of the same
// logical email. The same precedence rule is applied twice per run:
// once over raw messages before synthesis and again over analysis
// results before todo generation.
type RecipientPrecedenceFilter struct {
	logger *zap.Logger
}

// NewRecipientPrecedenceFilter creates a new precedence filter.
func NewRecipientPrecedenceFilter(logger *zap.Logger) *RecipientPrecedenceFilter {
	return &RecipientPrecedenceFilter{logger: logger}
}

// FilterMessages removes messages the persona sent itself, then keeps
// exactly one recipient-type variant per (sender, subject, timestamp)
// email group. Non-email messages pass through untouched.
func (f *RecipientPrecedenceFilter) FilterMessages(messages []Message) []Message {
	inbound := make([]Message, 0, len(messages))
	sent := 0
	for _, m := range messages {
		if m.RecipientType == RecipientFrom {
			sent++
			continue
		}
		inbound = append(inbound, m)
	}
	if sent > 0 {
		f.logger.Debug("Dropped messages sent by the persona", zap.Int("count", sent))
	}

	kept := filterPrecedence(inbound,
		func(m Message) (emailGroupKey, bool) {
			if m.Platform != PlatformEmail {
				return emailGroupKey{}, false
			}
			return emailGroupKey{sender: m.Sender, subject: m.Subject, date: m.Date}, true
		},
		func(m Message) RecipientType { return m.RecipientType },
	)
	if removed := len(inbound) - len(kept); removed > 0 {
		f.logger.Info("Collapsed recipient-type duplicates",
			zap.Int("removed", removed),
			zap.Int("kept", len(kept)))
	}
	return kept
}

// FilterResults applies the same precedence rule over analysis
// results. The key namespace differs (result-level instead of
// message-level) but the partition must match for the same event.
func (f *RecipientPrecedenceFilter) FilterResults(results []AnalysisResult) []AnalysisResult {
	return filterPrecedence(results,
		func(r AnalysisResult) (emailGroupKey, bool) {
			if r.Message.Platform != PlatformEmail {
				return emailGroupKey{}, false
			}
			return emailGroupKey{sender: r.Message.Sender, subject: r.Message.Subject, date: r.Message.Date}, true
		},
		func(r AnalysisResult) RecipientType { return r.Message.RecipientType },
	)
}

// filterPrecedence keeps, within each email group, only the items of
// the strongest recipient type present. Items without a group key
// (non-email) always survive. Input order is preserved.
func filterPrecedence[T any](items []T, key func(T) (emailGroupKey, bool), rt func(T) RecipientType) []T {
	best := make(map[emailGroupKey]int)
	for _, item := range items {
		k, ok := key(item)
		if !ok {
			continue
		}
		if rank := recipientRank(rt(item)); rank > best[k] {
			best[k] = rank
		}
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		k, ok := key(item)
		if ok && recipientRank(rt(item)) < best[k] {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
