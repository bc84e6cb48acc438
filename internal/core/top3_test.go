package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRuleParser struct {
	parsed *ParsedRules
	err    error
	texts  []string
}

func (s *stubRuleParser) ParseRules(_ context.Context, text string) (*ParsedRules, error) {
	s.texts = append(s.texts, text)
	return s.parsed, s.err
}

func newTestSelector(parser RuleParser) *Top3Selector {
	return NewTop3Selector(DefaultTop3Rules(), parser, zap.NewNop())
}

func TestPickTop3_AtMostThree(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := make([]TodoItem, 10)
	for i := range items {
		items[i] = TodoItem{ID: fmt.Sprintf("t%d", i), Priority: PriorityMedium, Status: StatusPending}
	}

	top := s.PickTop3(items, now)
	assert.Len(t, top, 3)
}

func TestPickTop3_FewerThanThreeItems(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	top := s.PickTop3([]TodoItem{{ID: "t1", Priority: PriorityLow, Status: StatusPending}}, now)
	assert.Equal(t, map[string]bool{"t1": true}, top)

	assert.Empty(t, s.PickTop3(nil, now))
}

func TestPickTop3_DoneItemsExcluded(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh, Status: StatusDone},
		{ID: "t2", Priority: PriorityLow, Status: StatusPending},
	}

	top := s.PickTop3(items, now)
	assert.Equal(t, map[string]bool{"t2": true}, top)
}

func TestPickTop3_PriorityAndDeadlineOrdering(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	soon := now.Add(2 * time.Hour)

	items := []TodoItem{
		{ID: "low", Priority: PriorityLow, Status: StatusPending},
		{ID: "high", Priority: PriorityHigh, Status: StatusPending},
		{ID: "medium-urgent", Priority: PriorityMedium, Deadline: &soon, Status: StatusPending},
		{ID: "medium", Priority: PriorityMedium, Status: StatusPending},
	}

	top := s.PickTop3(items, now)
	assert.True(t, top["high"])
	assert.True(t, top["medium-urgent"])
	assert.True(t, top["medium"])
	assert.False(t, top["low"])
}

func TestScore_DeadlineProximityRaisesScore(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	near := now.Add(2 * time.Hour)
	far := now.Add(200 * time.Hour)

	base := s.Score(TodoItem{Priority: PriorityMedium}, now)
	nearScore := s.Score(TodoItem{Priority: PriorityMedium, Deadline: &near}, now)
	farScore := s.Score(TodoItem{Priority: PriorityMedium, Deadline: &far}, now)

	assert.Greater(t, nearScore, farScore)
	assert.Greater(t, farScore, base)
}

func TestScore_OverdueScoresAsImmediate(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	overdue := now.Add(-48 * time.Hour)
	immediate := now

	a := s.Score(TodoItem{Priority: PriorityMedium, Deadline: &overdue}, now)
	b := s.Score(TodoItem{Priority: PriorityMedium, Deadline: &immediate}, now)
	assert.InDelta(t, b, a, 1e-9)
}

func TestScore_CCPenaltyApplied(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	to := s.Score(TodoItem{Priority: PriorityHigh, RecipientType: RecipientTo}, now)
	cc := s.Score(TodoItem{Priority: PriorityHigh, RecipientType: RecipientCC}, now)
	bcc := s.Score(TodoItem{Priority: PriorityHigh, RecipientType: RecipientBCC}, now)

	assert.InDelta(t, to*0.7, cc, 1e-9)
	assert.InDelta(t, to*0.7*0.9, bcc, 1e-9)
}

func TestScore_EvidenceBonusCapped(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	five := s.Score(TodoItem{Priority: PriorityMedium, Evidence: []string{"a", "b", "c", "d", "e"}}, now)
	ten := s.Score(TodoItem{Priority: PriorityMedium, Evidence: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}}, now)
	assert.InDelta(t, five, ten, 1e-9)
}

func TestSetRules_ClampsIntoValidRanges(t *testing.T) {
	s := newTestSelector(nil)

	s.SetRules(map[string]float64{
		"priority_high":     25,
		"priority_low":      -3,
		"deadline_emphasis": 500,
		"cc_penalty":        1.7,
		"evidence_per_item": 2,
		"unknown_key":       99,
	})

	rules := s.Rules()
	assert.Equal(t, 10.0, rules.PriorityHigh)
	assert.Equal(t, 0.0, rules.PriorityLow)
	assert.Equal(t, 100.0, rules.DeadlineEmphasis)
	assert.Equal(t, 1.0, rules.CCPenalty)
	assert.Equal(t, 1.0, rules.EvidencePerItem)
	// Untouched weights keep their defaults.
	assert.Equal(t, 2.0, rules.PriorityMedium)
}

func TestApplyRules_RequesterBoostWinsTop3(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	msg, desc, err := s.ApplyNaturalLanguageRules(context.Background(), "always show requests from kate first", false)
	require.NoError(t, err)
	assert.Equal(t, "Rules updated.", msg)
	assert.Contains(t, desc, "kate")

	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh, Requester: "boss@corp.com", Status: StatusPending},
		{ID: "t2", Priority: PriorityLow, Requester: "kate@corp.com", Status: StatusPending},
	}

	top := s.PickTop3(items, now)
	// Rule-forced mode: only matching items are shown at all.
	assert.Equal(t, map[string]bool{"t2": true}, top)
}

func TestApplyRules_BoostedLowOutscoresPlainHigh(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, _, err := s.ApplyNaturalLanguageRules(context.Background(), "prioritize kate", false)
	require.NoError(t, err)

	boosted := s.Score(TodoItem{Priority: PriorityLow, Requester: "kate@corp.com"}, now)
	plain := s.Score(TodoItem{Priority: PriorityHigh, Requester: "boss@corp.com"}, now)
	assert.Greater(t, boosted, plain)
}

func TestApplyRules_ActionTypeBoost(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, _, err := s.ApplyNaturalLanguageRules(context.Background(), "meetings are most important", false)
	require.NoError(t, err)

	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh, ActionType: "task", Status: StatusPending},
		{ID: "t2", Priority: PriorityLow, ActionType: "meeting", Status: StatusPending},
	}

	top := s.PickTop3(items, now)
	assert.Equal(t, map[string]bool{"t2": true}, top)
}

func TestApplyRules_ResetRestoresDefaults(t *testing.T) {
	s := newTestSelector(nil)

	_, _, err := s.ApplyNaturalLanguageRules(context.Background(), "urgent: prioritize kate", false)
	require.NoError(t, err)
	require.NotEmpty(t, s.LastInstruction())

	msg, desc, err := s.ApplyNaturalLanguageRules(context.Background(), "reset everything", false)
	require.NoError(t, err)
	assert.Equal(t, "Rules reset to defaults.", msg)
	assert.Contains(t, desc, "Score mode")
	assert.Empty(t, s.LastInstruction())
	assert.Equal(t, DefaultTop3Rules(), s.Rules())
}

func TestApplyRules_ExplicitResetFlag(t *testing.T) {
	s := newTestSelector(nil)

	_, _, err := s.ApplyNaturalLanguageRules(context.Background(), "prioritize kate", false)
	require.NoError(t, err)

	msg, _, err := s.ApplyNaturalLanguageRules(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, "Rules reset to defaults.", msg)
	assert.Equal(t, DefaultTop3Rules(), s.Rules())
}

func TestApplyRules_CompoundFallsBackToParser(t *testing.T) {
	parser := &stubRuleParser{parsed: &ParsedRules{
		Requester: map[string]float64{"kate": 5},
		Keyword:   map[string]float64{"release": 3},
	}}
	s := newTestSelector(parser)

	msg, _, err := s.ApplyNaturalLanguageRules(context.Background(), "show kate's tasks and anything about the release", false)
	require.NoError(t, err)
	assert.Equal(t, "Rules updated.", msg)
	require.Len(t, parser.texts, 1)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh, Requester: "noone@corp.com", Title: "Prepare release notes", Status: StatusPending},
		{ID: "t2", Priority: PriorityLow, Requester: "kate@corp.com", Title: "Book flights", Status: StatusPending},
		{ID: "t3", Priority: PriorityHigh, Requester: "boss@corp.com", Title: "Expense report", Status: StatusPending},
	}
	top := s.PickTop3(items, now)
	assert.True(t, top["t1"])
	assert.True(t, top["t2"])
	assert.False(t, top["t3"])
}

func TestApplyRules_ParserErrorSurfaces(t *testing.T) {
	parser := &stubRuleParser{err: errors.New("model unavailable")}
	s := newTestSelector(parser)

	_, _, err := s.ApplyNaturalLanguageRules(context.Background(), "show kate's tasks and bob's tasks", false)
	assert.Error(t, err)
}

func TestApplyRules_UnparseableWithoutParser(t *testing.T) {
	s := newTestSelector(nil)

	msg, _, err := s.ApplyNaturalLanguageRules(context.Background(), "show kate's tasks and bob's tasks", false)
	require.NoError(t, err)
	assert.Contains(t, msg, "Could not interpret")
	// Rules are untouched.
	assert.Equal(t, DefaultTop3Rules(), s.Rules())
}

func TestPickTop3_TieBreakPrefersNewer(t *testing.T) {
	s := newTestSelector(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := make([]TodoItem, 4)
	for i := range items {
		items[i] = TodoItem{
			ID:        fmt.Sprintf("t%d", i),
			Priority:  PriorityMedium,
			Status:    StatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
	}

	top := s.PickTop3(items, now)
	assert.Equal(t, map[string]bool{"t1": true, "t2": true, "t3": true}, top)
}
