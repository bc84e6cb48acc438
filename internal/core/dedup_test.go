package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDedup_CollapsesNearDuplicatesFromSameMessage(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "review the quarterly budget report", ActionType: "task", SourceMessageID: "m1"},
		{ActionID: "a2", Description: "review the quarterly budget report", ActionType: "review", SourceMessageID: "m1"},
	}

	kept := d.Dedup(candidates)
	require.Len(t, kept, 1)
	// review outranks task, so the duplicate replaces the original.
	assert.Equal(t, "a2", kept[0].ActionID)
}

func TestDedup_LowerRankNeverReplaces(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "schedule the planning meeting for tuesday", ActionType: "meeting", SourceMessageID: "m1"},
		{ActionID: "a2", Description: "schedule the planning meeting for tuesday", ActionType: "response", SourceMessageID: "m1"},
	}

	kept := d.Dedup(candidates)
	require.Len(t, kept, 1)
	assert.Equal(t, "a1", kept[0].ActionID)
}

func TestDedup_DifferentMessagesNeverCollapse(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "review the quarterly budget report", ActionType: "review", SourceMessageID: "m1"},
		{ActionID: "a2", Description: "review the quarterly budget report", ActionType: "review", SourceMessageID: "m2"},
	}

	assert.Len(t, d.Dedup(candidates), 2)
}

func TestDedup_BelowThresholdKept(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "review the quarterly budget report", ActionType: "review", SourceMessageID: "m1"},
		{ActionID: "a2", Description: "schedule a sync about hiring plans", ActionType: "meeting", SourceMessageID: "m1"},
	}

	assert.Len(t, d.Dedup(candidates), 2)
}

func TestDedup_NoSourceMessageAlwaysKept(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "review the quarterly budget report", ActionType: "review"},
		{ActionID: "a2", Description: "review the quarterly budget report", ActionType: "review"},
	}

	assert.Len(t, d.Dedup(candidates), 2)
}

func TestDedup_Idempotent(t *testing.T) {
	d := NewCandidateDeduplicator(0.7, zap.NewNop())

	candidates := []ActionCandidate{
		{ActionID: "a1", Description: "review the quarterly budget report today", ActionType: "review", SourceMessageID: "m1"},
		{ActionID: "a2", Description: "review the quarterly budget report", ActionType: "task", SourceMessageID: "m1"},
		{ActionID: "a3", Description: "book a room for the retro meeting", ActionType: "meeting", SourceMessageID: "m1"},
	}

	once := d.Dedup(candidates)
	twice := d.Dedup(once)
	assert.Equal(t, once, twice)
}

func TestDedup_RankReplacementAbsorbsNearbyKept(t *testing.T) {
	d := NewCandidateDeduplicator(0.9, zap.NewNop())

	// a1 and a2 overlap at 0.8 and are both kept; a3 overlaps each at
	// 0.9 and outranks a1, so replacing a1 must also fold a2 in.
	words := []string{"please", "review", "the", "quarterly", "budget", "report", "with", "finance", "team", "today"}
	candidates := []ActionCandidate{
		{ActionID: "a1", Description: join(words[:9]), ActionType: "task", SourceMessageID: "m1"},
		{ActionID: "a2", Description: join(words[1:]), ActionType: "task", SourceMessageID: "m1"},
		{ActionID: "a3", Description: join(words), ActionType: "meeting", SourceMessageID: "m1"},
	}

	once := d.Dedup(candidates)
	require.Len(t, once, 1)
	assert.Equal(t, "a3", once[0].ActionID)
	assert.Equal(t, once, d.Dedup(once))
}

func join(words []string) string {
	return strings.Join(words, " ")
}

func TestActionTypeRank_Ordering(t *testing.T) {
	assert.Greater(t, ActionTypeRank("meeting"), ActionTypeRank("deadline"))
	assert.Greater(t, ActionTypeRank("deadline"), ActionTypeRank("review"))
	assert.Greater(t, ActionTypeRank("review"), ActionTypeRank("task"))
	assert.Greater(t, ActionTypeRank("task"), ActionTypeRank("response"))
	assert.Equal(t, 0, ActionTypeRank("unknown"))
}
