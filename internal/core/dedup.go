package core

import (
	"go.uber.org/zap"
)

// actionTypeRank orders action types for duplicate resolution. When
// two near-identical candidates from the same message collide, the
// higher-ranked type wins.
var actionTypeRank = map[string]int{
	"meeting":  5,
	"deadline": 4,
	"review":   3,
	"task":     2,
	"response": 1,
}

// ActionTypeRank returns the duplicate-resolution rank for an action
// type. Unranked types return 0.
func ActionTypeRank(actionType string) int {
	return actionTypeRank[actionType]
}

// CandidateDeduplicator collapses near-duplicate action candidates
// originating from the same source message.
type CandidateDeduplicator struct {
	threshold float64
	logger    *zap.Logger
}

// NewCandidateDeduplicator creates a deduplicator with the given
// similarity threshold (candidates at or above it are duplicates).
func NewCandidateDeduplicator(threshold float64, logger *zap.Logger) *CandidateDeduplicator {
	return &CandidateDeduplicator{threshold: threshold, logger: logger}
}

// Dedup keeps at most one candidate of each near-duplicate cluster per
// source message, preferring the higher action-type rank. Candidates
// without a source message id bypass grouping and are always kept.
// Running Dedup on its own output yields the same output.
func (d *CandidateDeduplicator) Dedup(candidates []ActionCandidate) []ActionCandidate {
	if len(candidates) <= 1 {
		return candidates
	}

	// Kept candidates per source message, in arrival order. Slots go
	// dead when a rank replacement pulls two clusters together.
	keptBySource := make(map[string][]int)
	kept := make([]ActionCandidate, 0, len(candidates))
	alive := make([]bool, 0, len(candidates))
	removed := 0

	for _, cand := range candidates {
		if cand.SourceMessageID == "" {
			kept = append(kept, cand)
			alive = append(alive, true)
			continue
		}

		group := keptBySource[cand.SourceMessageID]
		duplicate := false
		for _, idx := range group {
			if !alive[idx] {
				continue
			}
			if Similarity(cand.Description, kept[idx].Description) < d.threshold {
				continue
			}
			duplicate = true
			removed++
			if ActionTypeRank(cand.ActionType) > ActionTypeRank(kept[idx].ActionType) {
				kept[idx] = cand
				// The replacement may sit within threshold of kept
				// candidates the original did not. Fold those in so
				// the kept set stays pairwise distinct.
				for _, other := range group {
					if other == idx || !alive[other] {
						continue
					}
					if Similarity(kept[idx].Description, kept[other].Description) < d.threshold {
						continue
					}
					if ActionTypeRank(kept[other].ActionType) > ActionTypeRank(kept[idx].ActionType) {
						kept[idx] = kept[other]
					}
					alive[other] = false
					removed++
				}
			}
			break
		}
		if !duplicate {
			keptBySource[cand.SourceMessageID] = append(group, len(kept))
			kept = append(kept, cand)
			alive = append(alive, true)
		}
	}

	out := make([]ActionCandidate, 0, len(kept))
	for i, c := range kept {
		if alive[i] {
			out = append(out, c)
		}
	}

	if removed > 0 {
		d.logger.Debug("Removed near-duplicate candidates",
			zap.Int("removed", removed),
			zap.Int("kept", len(out)))
	}
	return out
}
