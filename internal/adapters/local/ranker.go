package local

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quickchat/todo-triage/internal/core"
	"go.uber.org/zap"
)

// HeuristicRanker is a keyword-based implementation of the
// core.PriorityRanker interface. It needs no network access and is the
// default ranker for the CLI.
type HeuristicRanker struct {
	logger *zap.Logger
}

// NewHeuristicRanker creates a new heuristic ranker
func NewHeuristicRanker(logger *zap.Logger) *HeuristicRanker {
	return &HeuristicRanker{logger: logger}
}

var (
	urgentKeywords    = []string{"urgent", "asap", "immediately", "right away", "critical"}
	importantKeywords = []string{"important", "priority", "key", "essential"}
	deadlineKeywords  = []string{"deadline", "due", "by tomorrow", "by friday", "eod", "end of day", "submit"}
	requestKeywords   = []string{"please", "can you", "could you", "would you", "let me know", "need you"}
)

// Rank scores messages by urgency signals and returns them ordered by
// score descending.
func (r *HeuristicRanker) Rank(ctx context.Context, messages []core.Message) ([]core.RankedMessage, error) {
	ranked := make([]core.RankedMessage, 0, len(messages))
	for _, m := range messages {
		score, reasoning := scoreMessage(m)
		level := core.PriorityLow
		switch {
		case score >= 0.7:
			level = core.PriorityHigh
		case score >= 0.4:
			level = core.PriorityMedium
		}
		ranked = append(ranked, core.RankedMessage{
			Message:       m,
			PriorityLevel: level,
			OverallScore:  score,
			Reasoning:     reasoning,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallScore > ranked[j].OverallScore
	})

	r.logger.Debug("Ranked messages", zap.Int("count", len(ranked)))
	return ranked, nil
}

func scoreMessage(m core.Message) (float64, []string) {
	text := strings.ToLower(m.Text())
	score := 0.2
	var reasoning []string

	if kw := firstMatch(text, urgentKeywords); kw != "" {
		score += 0.4
		reasoning = append(reasoning, fmt.Sprintf("contains urgency keyword %q", kw))
	}
	if kw := firstMatch(text, importantKeywords); kw != "" {
		score += 0.2
		reasoning = append(reasoning, fmt.Sprintf("contains importance keyword %q", kw))
	}
	if kw := firstMatch(text, deadlineKeywords); kw != "" {
		score += 0.2
		reasoning = append(reasoning, fmt.Sprintf("mentions a deadline (%q)", kw))
	}
	if kw := firstMatch(text, requestKeywords); kw != "" {
		score += 0.1
		reasoning = append(reasoning, "contains a direct request")
	}
	if m.RecipientType == core.RecipientTo {
		score += 0.1
		reasoning = append(reasoning, "addressed directly to the recipient")
	}
	if score > 1.0 {
		score = 1.0
	}
	if len(reasoning) == 0 {
		reasoning = append(reasoning, "no urgency signals found")
	}
	return score, reasoning
}

func firstMatch(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}
