package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRebalancer() *PriorityRebalancer {
	return NewPriorityRebalancer(DefaultRebalanceConfig(), zap.NewNop())
}

func deadlineIn(now time.Time, d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestRebalanceScore_UrgencyTiers(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	item := TodoItem{Priority: PriorityMedium}

	base := r.Score(item, now)

	item.Deadline = deadlineIn(now, 12*time.Hour)
	assert.InDelta(t, base+1.5, r.Score(item, now), 1e-9)

	item.Deadline = deadlineIn(now, 48*time.Hour)
	assert.InDelta(t, base+1.0, r.Score(item, now), 1e-9)

	item.Deadline = deadlineIn(now, 100*time.Hour)
	assert.InDelta(t, base+0.5, r.Score(item, now), 1e-9)

	item.Deadline = deadlineIn(now, 400*time.Hour)
	assert.InDelta(t, base, r.Score(item, now), 1e-9)
}

func TestRebalanceScore_EvidenceCapped(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	two := TodoItem{Priority: PriorityLow, Evidence: []string{"a", "b"}}
	many := TodoItem{Priority: PriorityLow, Evidence: []string{"a", "b", "c", "d", "e", "f"}}

	assert.InDelta(t, 1.4, r.Score(two, now), 1e-9)
	assert.InDelta(t, 1.6, r.Score(many, now), 1e-9)
}

func TestRebalance_EmptyAndSingle(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.Nil(t, r.Rebalance(nil, now))

	out := r.Rebalance([]TodoItem{{ID: "t1", Priority: PriorityLow}}, now)
	require.Len(t, out, 1)
	// A lone raw-low item scores 1.0: promoted, but capped at medium.
	assert.Equal(t, PriorityMedium, out[0].Priority)
	assert.Equal(t, PriorityLow, out[0].RawPriority)
}

func TestRebalance_PairKeepsOneHigh(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh},
		{ID: "t2", Priority: PriorityMedium},
	}
	out := r.Rebalance(items, now)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].ID)
	assert.Equal(t, PriorityHigh, out[0].Priority)
	// With two items there is no low slice, only a high/medium split.
	assert.Equal(t, "t2", out[1].ID)
	assert.Equal(t, PriorityMedium, out[1].Priority)
}

func TestRebalance_RawHighNeverBecomesLow(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Ten raw-high items: the percentile cut would push the tail into
	// the low bucket, but high-origin items stop at medium.
	items := make([]TodoItem, 10)
	for i := range items {
		items[i] = TodoItem{ID: fmt.Sprintf("t%d", i), Priority: PriorityHigh}
	}

	out := r.Rebalance(items, now)
	for _, item := range out {
		assert.NotEqual(t, PriorityLow, item.Priority, "item %s", item.ID)
		assert.Equal(t, PriorityHigh, item.RawPriority)
	}
}

func TestRebalance_WeakLowStopsAtMedium(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// All raw-low with no urgency or evidence: composite scores stay
	// below the promotion floor, so nothing reaches high.
	items := make([]TodoItem, 10)
	for i := range items {
		items[i] = TodoItem{ID: fmt.Sprintf("t%d", i), Priority: PriorityLow}
	}

	out := r.Rebalance(items, now)
	for _, item := range out {
		assert.NotEqual(t, PriorityHigh, item.Priority, "item %s", item.ID)
	}
}

func TestRebalance_UrgentLowCanReachHigh(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := []TodoItem{
		{ID: "urgent", Priority: PriorityLow, Deadline: deadlineIn(now, 6*time.Hour), Evidence: []string{"a", "b", "c"}},
		{ID: "t1", Priority: PriorityLow},
		{ID: "t2", Priority: PriorityLow},
		{ID: "t3", Priority: PriorityLow},
		{ID: "t4", Priority: PriorityLow},
	}

	out := r.Rebalance(items, now)
	require.Equal(t, "urgent", out[0].ID)
	// 1.0 base + 1.5 urgency + 0.6 evidence clears the floor.
	assert.Equal(t, PriorityHigh, out[0].Priority)
	assert.Equal(t, PriorityLow, out[0].RawPriority)
}

func TestRebalance_SpreadsClusteredInput(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Ten identical raw-medium items with varying urgency.
	items := make([]TodoItem, 10)
	for i := range items {
		items[i] = TodoItem{
			ID:       fmt.Sprintf("t%d", i),
			Priority: PriorityMedium,
			Deadline: deadlineIn(now, time.Duration(12+i*36)*time.Hour),
		}
	}

	out := r.Rebalance(items, now)
	counts := map[Priority]int{}
	for _, item := range out {
		counts[item.Priority]++
	}
	assert.Equal(t, 3, counts[PriorityHigh])
	assert.Equal(t, 5, counts[PriorityMedium])
	assert.Equal(t, 2, counts[PriorityLow])
}

func TestCutPoints(t *testing.T) {
	cases := []struct {
		total           int
		highCut, lowCut int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{3, 1, 2},
		{10, 3, 8},
		{20, 6, 16},
	}
	for _, tc := range cases {
		high, low := cutPoints(tc.total, 0.3, 0.2)
		assert.Equal(t, tc.highCut, high, "total=%d", tc.total)
		assert.Equal(t, tc.lowCut, low, "total=%d", tc.total)
	}
}

func TestRebalance_DoesNotModifyInput(t *testing.T) {
	r := newTestRebalancer()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := []TodoItem{
		{ID: "t1", Priority: PriorityHigh},
		{ID: "t2", Priority: PriorityLow},
		{ID: "t3", Priority: PriorityLow},
	}
	_ = r.Rebalance(items, now)
	assert.Equal(t, Priority(""), items[0].RawPriority)
	assert.Equal(t, PriorityHigh, items[0].Priority)
}
