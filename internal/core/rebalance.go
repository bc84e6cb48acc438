package core

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// RebalanceConfig tunes the composite score and the percentile cuts
// of the priority rebalancing pass.
type RebalanceConfig struct {
	HighRatio float64
	LowRatio  float64

	UrgentBonus   float64 // deadline within a day
	SoonBonus     float64 // within three days
	UpcomingBonus float64 // within a week

	EvidencePerItem float64
	EvidenceMax     float64

	// A low-priority item promoted into the top slice stops at medium
	// unless its composite score clears this bar.
	PromotionScoreFloor float64
}

// DefaultRebalanceConfig returns the built-in rebalancing tuning.
func DefaultRebalanceConfig() RebalanceConfig {
	return RebalanceConfig{
		HighRatio:           0.3,
		LowRatio:            0.2,
		UrgentBonus:         1.5,
		SoonBonus:           1.0,
		UpcomingBonus:       0.5,
		EvidencePerItem:     0.2,
		EvidenceMax:         0.6,
		PromotionScoreFloor: 2.0,
	}
}

// PriorityRebalancer redistributes clustered raw priority labels into
// usable high/medium/low buckets while respecting deadline urgency
// and evidence. Promotion and demotion are bounded: a raw low only
// becomes high on a strong composite score, a raw high never becomes
// low.
type PriorityRebalancer struct {
	cfg    RebalanceConfig
	logger *zap.Logger
}

// NewPriorityRebalancer creates a rebalancer.
func NewPriorityRebalancer(cfg RebalanceConfig, logger *zap.Logger) *PriorityRebalancer {
	return &PriorityRebalancer{cfg: cfg, logger: logger}
}

func priorityBaseWeight(p Priority) float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Score computes the composite score of one item at the given time.
func (r *PriorityRebalancer) Score(item TodoItem, now time.Time) float64 {
	score := priorityBaseWeight(item.Priority)
	score += r.urgencyBonus(item.Deadline, now)

	evidence := r.cfg.EvidencePerItem * float64(len(item.Evidence))
	if evidence > r.cfg.EvidenceMax {
		evidence = r.cfg.EvidenceMax
	}
	return score + evidence
}

func (r *PriorityRebalancer) urgencyBonus(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	hours := deadline.Sub(now).Hours()
	switch {
	case hours <= 24:
		return r.cfg.UrgentBonus
	case hours <= 72:
		return r.cfg.SoonBonus
	case hours <= 168:
		return r.cfg.UpcomingBonus
	default:
		return 0
	}
}

// Rebalance assigns every item a rebalanced priority bucket and
// records the original label in RawPriority. The input slice is not
// modified; the returned slice is ordered by score descending.
func (r *PriorityRebalancer) Rebalance(items []TodoItem, now time.Time) []TodoItem {
	if len(items) == 0 {
		return nil
	}

	type scored struct {
		item  TodoItem
		score float64
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		item.RawPriority = item.Priority
		ranked[i] = scored{item: item, score: r.Score(item, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	total := len(ranked)
	highCut, lowCut := cutPoints(total, r.cfg.HighRatio, r.cfg.LowRatio)

	out := make([]TodoItem, total)
	for i, s := range ranked {
		item := s.item
		switch {
		case i < highCut:
			if item.RawPriority == PriorityLow && s.score < r.cfg.PromotionScoreFloor {
				item.Priority = PriorityMedium
			} else {
				item.Priority = PriorityHigh
			}
		case i >= lowCut:
			if item.RawPriority == PriorityHigh {
				item.Priority = PriorityMedium
			} else {
				item.Priority = PriorityLow
			}
		default:
			item.Priority = PriorityMedium
		}
		out[i] = item
	}

	r.logger.Debug("Rebalanced priorities",
		zap.Int("total", total),
		zap.Int("high_cut", highCut),
		zap.Int("low_cut", lowCut))
	return out
}

// cutPoints splits total ranked items into the high, medium and low
// slices. Small inputs get degenerate cuts so every bucket boundary
// remains valid.
func cutPoints(total int, highRatio, lowRatio float64) (highCut, lowCut int) {
	switch total {
	case 1:
		return 1, 1
	case 2:
		return 1, 2
	}
	highCut = int(math.Round(float64(total) * highRatio))
	if highCut < 1 {
		highCut = 1
	}
	lowSize := int(math.Round(float64(total) * lowRatio))
	if lowSize < 1 {
		lowSize = 1
	}
	lowCut = total - lowSize
	if lowCut <= highCut {
		lowCut = highCut + 1
	}
	return highCut, lowCut
}
