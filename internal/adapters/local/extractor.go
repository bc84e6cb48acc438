package local

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeywordExtractor is a keyword-and-pattern implementation of the
// core.ActionExtractor interface. It is deliberately cheap: it
// over-generates candidates and leaves the filtering to the
// verification stage downstream.
type KeywordExtractor struct {
	logger *zap.Logger
}

// NewKeywordExtractor creates a new keyword extractor
func NewKeywordExtractor(logger *zap.Logger) *KeywordExtractor {
	return &KeywordExtractor{logger: logger}
}

var (
	meetingMarkers  = []string{"meeting", "call", "sync", "standup", "huddle", "conference"}
	deadlineMarkers = []string{"deadline", "due", "submit", "by eod", "end of day", "no later than"}
	reviewMarkers   = []string{"review", "feedback", "check", "look over", "comments on", "approve"}
	responseMarkers = []string{"reply", "respond", "answer", "get back to", "let me know"}

	requestMarkers = []string{
		"please", "pls", "can you", "could you", "would you", "kindly",
		"need", "require", "request", "send", "share", "provide", "update",
		"prepare", "schedule", "follow up", "let me know", "appreciate",
	}

	// Sentences that share information rather than ask for work.
	infoSharingMarkers = []string{
		"fyi", "for your information", "no action needed", "no action required",
		"just so you know", "just letting you know", "heads up",
	}
	pastTenseMarkers = []string{
		"i have sent", "i sent", "already done", "has been completed",
		"was completed", "i finished", "i've finished", "i already",
	}
)

// Extract scans each message for request-like sentences and produces
// one candidate per sentence that looks actionable.
func (e *KeywordExtractor) Extract(ctx context.Context, messages []core.Message, userEmail string) ([]core.ActionCandidate, error) {
	var candidates []core.ActionCandidate
	for _, m := range messages {
		if strings.EqualFold(m.Sender, userEmail) {
			continue
		}
		for _, sentence := range splitSentences(m.Text()) {
			lowered := strings.ToLower(sentence)
			if !looksLikeRequest(lowered) {
				continue
			}
			actionType := inferActionType(lowered)
			candidates = append(candidates, core.ActionCandidate{
				ActionID:        fmt.Sprintf("%s_%s", actionType, uuid.New().String()[:12]),
				Title:           actionTitle(actionType, sentence),
				Description:     sentence,
				Priority:        inferPriority(lowered),
				Deadline:        extractDeadline(lowered, m.Date),
				Requester:       m.Sender,
				ActionType:      actionType,
				SourceMessageID: m.ID,
				CreatedAt:       time.Now(),
			})
		}
	}

	e.logger.Debug("Extracted action candidates",
		zap.Int("messages", len(messages)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func splitSentences(text string) []string {
	var sentences []string
	for _, chunk := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		chunk = strings.TrimSpace(strings.TrimLeft(chunk, "-*• \t"))
		if utf8.RuneCountInString(chunk) >= 10 {
			sentences = append(sentences, chunk)
		}
	}
	return sentences
}

func looksLikeRequest(lowered string) bool {
	for _, marker := range infoSharingMarkers {
		if strings.Contains(lowered, marker) {
			return false
		}
	}
	for _, marker := range pastTenseMarkers {
		if strings.Contains(lowered, marker) {
			return false
		}
	}
	for _, marker := range requestMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func inferActionType(lowered string) string {
	switch {
	case containsAny(lowered, meetingMarkers):
		return "meeting"
	case containsAny(lowered, deadlineMarkers):
		return "deadline"
	case containsAny(lowered, responseMarkers):
		return "response"
	case containsAny(lowered, reviewMarkers):
		return "review"
	default:
		return "task"
	}
}

func inferPriority(lowered string) core.Priority {
	if containsAny(lowered, urgentKeywords) {
		return core.PriorityHigh
	}
	if containsAny(lowered, importantKeywords) {
		return core.PriorityMedium
	}
	return core.PriorityLow
}

var titleCaser = cases.Title(language.English)

func actionTitle(actionType, sentence string) string {
	title := utils.TruncateRunes(sentence, 60)
	return titleCaser.String(actionType) + ": " + title
}

// extractDeadline resolves relative deadline phrases against the
// message timestamp. Unrecognized phrases mean no deadline.
func extractDeadline(lowered string, messageTime time.Time) *time.Time {
	if messageTime.IsZero() {
		messageTime = time.Now()
	}
	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, t.Location())
	}

	switch {
	case strings.Contains(lowered, "today") || strings.Contains(lowered, "eod") ||
		strings.Contains(lowered, "end of day"):
		d := endOfDay(messageTime)
		return &d
	case strings.Contains(lowered, "tomorrow"):
		d := endOfDay(messageTime.AddDate(0, 0, 1))
		return &d
	case strings.Contains(lowered, "next week"):
		d := endOfDay(messageTime.AddDate(0, 0, 7))
		return &d
	}

	weekdays := map[string]time.Weekday{
		"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
		"thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday, "sunday": time.Sunday,
	}
	for name, day := range weekdays {
		if !strings.Contains(lowered, "by "+name) && !strings.Contains(lowered, "until "+name) {
			continue
		}
		days := (int(day) - int(messageTime.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		d := endOfDay(messageTime.AddDate(0, 0, days))
		return &d
	}
	return nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
