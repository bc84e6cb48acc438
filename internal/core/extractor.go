package core

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ExtractionConfig holds every tunable of the two-stage extraction
// pipeline. All thresholds and phrase sets are data, not logic.
type ExtractionConfig struct {
	// Stage 0 prefilter.
	MinTextLen          int
	GreetingMaxLen      int
	GreetingPhrases     []string
	StatusUpdateMaxLen  int
	StatusUpdatePhrases []string
	ActionKeywords      []string

	// Stage 1.
	MinDescriptionLen int

	// Stage 1.5.
	DedupThreshold float64

	// Stage 2.
	BatchSize int
}

// DefaultExtractionConfig returns the built-in pipeline tuning.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinTextLen:     15,
		GreetingMaxLen: 40,
		GreetingPhrases: []string{
			"hello", "hi", "hey", "good morning", "good afternoon",
			"thanks", "thank you", "ok", "okay", "got it", "understood",
			"sounds good", "will do", "no problem", "sure",
		},
		StatusUpdateMaxLen: 200,
		StatusUpdatePhrases: []string{
			"status update", "progress update", "for your information",
			"fyi", "just letting you know", "daily standup",
			"weekly report", "current status", "work in progress",
		},
		ActionKeywords: []string{
			"please", "request", "need", "review", "confirm", "feedback",
			"by ", "due", "deadline", "asap", "urgent", "could you",
			"can you", "would you", "let me know",
		},
		MinDescriptionLen: 10,
		DedupThreshold:    0.9,
		BatchSize:         50,
	}
}

// ExtractionOrchestrator runs cheap candidate generation over all
// ranked messages and pays for expensive verification only on the
// messages that produced a candidate.
type ExtractionOrchestrator struct {
	extractor  ActionExtractor
	summarizer Summarizer
	dedup      *CandidateDeduplicator
	cfg        ExtractionConfig
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewExtractionOrchestrator creates a new orchestrator. The circuit
// breaker guards the expensive Summarizer; an open breaker degrades
// verification to the fail-open no-verdict path.
func NewExtractionOrchestrator(
	extractor ActionExtractor,
	summarizer Summarizer,
	cfg ExtractionConfig,
	logger *zap.Logger,
) *ExtractionOrchestrator {
	settings := gobreaker.Settings{
		Name:     "summarizer",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Summarizer breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &ExtractionOrchestrator{
		extractor:  extractor,
		summarizer: summarizer,
		dedup:      NewCandidateDeduplicator(cfg.DedupThreshold, logger),
		cfg:        cfg,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// Extract runs stages 0 through 3 and returns the surviving
// candidates plus the verdicts collected during verification, keyed
// by source message id.
func (o *ExtractionOrchestrator) Extract(
	ctx context.Context,
	ranked []RankedMessage,
	userEmail string,
) ([]ActionCandidate, map[string]Verdict, error) {
	// Stage 0: drop messages that cannot possibly carry an action.
	survivors := make([]Message, 0, len(ranked))
	for _, rm := range ranked {
		if o.prefilter(rm.Message) {
			survivors = append(survivors, rm.Message)
		}
	}
	o.logger.Info("Prefilter complete",
		zap.Int("in", len(ranked)),
		zap.Int("out", len(survivors)))
	if len(survivors) == 0 {
		return nil, map[string]Verdict{}, nil
	}

	// Stage 1: cheap candidate generation over every survivor.
	raw, err := o.extractor.Extract(ctx, survivors, userEmail)
	if err != nil {
		return nil, nil, err
	}
	candidates := make([]ActionCandidate, 0, len(raw))
	for _, c := range raw {
		if utf8.RuneCountInString(c.Description) < o.cfg.MinDescriptionLen {
			continue
		}
		candidates = append(candidates, c)
	}

	// Stage 1.5: per-message near-duplicate collapse.
	candidates = o.dedup.Dedup(candidates)
	o.logger.Info("Candidate generation complete",
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(candidates)))

	// Stage 2: selective verification of the messages that produced a
	// surviving candidate, highest-ranked first.
	verdicts := o.verify(ctx, ranked, survivors, candidates)

	// Stage 3: a false verdict drops the candidate; a missing verdict
	// keeps it. The expensive stage failing must never lose the cheap
	// stage's output.
	verified := make([]ActionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if v, ok := verdicts[c.SourceMessageID]; ok && !v.ActionRequired {
			continue
		}
		verified = append(verified, c)
	}
	return verified, verdicts, nil
}

// prefilter reports whether a message survives stage 0.
func (o *ExtractionOrchestrator) prefilter(m Message) bool {
	text := strings.TrimSpace(m.Text())
	length := utf8.RuneCountInString(text)
	if length < o.cfg.MinTextLen {
		return false
	}

	normalized := normalizeText(text)
	if length < o.cfg.GreetingMaxLen {
		for _, phrase := range o.cfg.GreetingPhrases {
			if normalized == normalizeText(phrase) {
				return false
			}
		}
	}

	if length < o.cfg.StatusUpdateMaxLen {
		lowered := strings.ToLower(text)
		isUpdate := false
		for _, phrase := range o.cfg.StatusUpdatePhrases {
			if strings.Contains(lowered, phrase) {
				isUpdate = true
				break
			}
		}
		if isUpdate {
			for _, kw := range o.cfg.ActionKeywords {
				if strings.Contains(lowered, kw) {
					return true
				}
			}
			return false
		}
	}
	return true
}

// verify collects the distinct source messages with surviving
// candidates, orders them by rank order, and runs the Summarizer in
// fixed-size sequential batches. Verdicts merge after every batch so
// progressive consumers see partial results; a failed batch simply
// contributes none (fail-open).
func (o *ExtractionOrchestrator) verify(
	ctx context.Context,
	ranked []RankedMessage,
	survivors []Message,
	candidates []ActionCandidate,
) map[string]Verdict {
	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.SourceMessageID != "" {
			wanted[c.SourceMessageID] = true
		}
	}

	// Rank order first, then any leftover survivors.
	ordered := make([]Message, 0, len(wanted))
	seen := make(map[string]bool, len(wanted))
	for _, rm := range ranked {
		if wanted[rm.Message.ID] && !seen[rm.Message.ID] {
			ordered = append(ordered, rm.Message)
			seen[rm.Message.ID] = true
		}
	}
	for _, m := range survivors {
		if wanted[m.ID] && !seen[m.ID] {
			ordered = append(ordered, m)
			seen[m.ID] = true
		}
	}

	verdicts := make(map[string]Verdict, len(ordered))
	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(ordered); start += batchSize {
		end := start + batchSize
		if end > len(ordered) {
			end = len(ordered)
		}
		batch := ordered[start:end]

		result, err := o.breaker.Execute(func() (interface{}, error) {
			return o.summarizer.Summarize(ctx, batch)
		})
		if err != nil {
			// Candidates of this batch fall into the no-verdict case.
			o.logger.Warn("Verification batch failed, keeping cheap-stage results",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}

		// Merge immediately, keyed by source message id so the merge
		// is independent of completion order.
		for _, v := range result.([]Verdict) {
			if v.OriginalID != "" {
				verdicts[v.OriginalID] = v
			}
		}
	}
	return verdicts
}

// normalizeText lowercases, decomposes and strips punctuation and
// marks, leaving only letters, digits and single spaces.
func normalizeText(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.In(unicode.Punct)),
		norm.NFC,
	)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}
