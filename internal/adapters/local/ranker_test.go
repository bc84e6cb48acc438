package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickchat/todo-triage/internal/core"
)

func TestRank_UrgentRequestRanksHigh(t *testing.T) {
	r := NewHeuristicRanker(zap.NewNop())

	msgs := []core.Message{
		{
			ID:            "m1",
			Content:       "Urgent: please submit the security audit by friday",
			RecipientType: core.RecipientTo,
		},
		{
			ID:      "m2",
			Content: "Here are the meeting notes from yesterday",
		},
	}

	ranked, err := r.Rank(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "m1", ranked[0].Message.ID)
	assert.Equal(t, core.PriorityHigh, ranked[0].PriorityLevel)
	assert.NotEmpty(t, ranked[0].Reasoning)

	assert.Equal(t, "m2", ranked[1].Message.ID)
	assert.Equal(t, core.PriorityLow, ranked[1].PriorityLevel)
	assert.Equal(t, []string{"no urgency signals found"}, ranked[1].Reasoning)
}

func TestRank_ScoreIsCapped(t *testing.T) {
	r := NewHeuristicRanker(zap.NewNop())

	msg := core.Message{
		ID:            "m1",
		Subject:       "Urgent and important",
		Content:       "Critical priority deadline, please submit asap, let me know",
		RecipientType: core.RecipientTo,
		Date:          time.Now(),
	}

	ranked, err := r.Rank(context.Background(), []core.Message{msg})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 1.0, ranked[0].OverallScore)
}

func TestRank_MediumBand(t *testing.T) {
	r := NewHeuristicRanker(zap.NewNop())

	// A deadline mention plus direct addressing lands in the medium band.
	msg := core.Message{
		ID:            "m1",
		Content:       "The report is due next Monday",
		RecipientType: core.RecipientTo,
	}

	ranked, err := r.Rank(context.Background(), []core.Message{msg})
	require.NoError(t, err)
	assert.Equal(t, core.PriorityMedium, ranked[0].PriorityLevel)
	assert.InDelta(t, 0.5, ranked[0].OverallScore, 1e-9)
}
