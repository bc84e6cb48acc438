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

type stubExtractor struct {
	calls [][]Message
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, messages []Message, _ string) ([]ActionCandidate, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return nil, s.err
	}
	candidates := make([]ActionCandidate, 0, len(messages))
	for i, m := range messages {
		candidates = append(candidates, ActionCandidate{
			ActionID:        fmt.Sprintf("cand_%d", i),
			Title:           "Follow up",
			Description:     "follow up on " + m.Subject + " " + m.ID,
			Priority:        PriorityMedium,
			ActionType:      "task",
			SourceMessageID: m.ID,
			CreatedAt:       m.Date,
		})
	}
	return candidates, nil
}

type stubSummarizer struct {
	batches  [][]Message
	err      error
	required func(id string) bool
}

func (s *stubSummarizer) Summarize(_ context.Context, messages []Message) ([]Verdict, error) {
	s.batches = append(s.batches, messages)
	if s.err != nil {
		return nil, s.err
	}
	verdicts := make([]Verdict, 0, len(messages))
	for _, m := range messages {
		required := true
		if s.required != nil {
			required = s.required(m.ID)
		}
		verdicts = append(verdicts, Verdict{OriginalID: m.ID, ActionRequired: required, Summary: "ok"})
	}
	return verdicts, nil
}

func rankedMessages(msgs ...Message) []RankedMessage {
	ranked := make([]RankedMessage, len(msgs))
	for i, m := range msgs {
		ranked[i] = RankedMessage{Message: m, PriorityLevel: PriorityMedium, OverallScore: 0.5}
	}
	return ranked
}

func statusUpdateMsg(id string) Message {
	return Message{
		ID:       id,
		Sender:   "bob@corp.com",
		Subject:  "Status Update",
		Content:  "All systems running normally this week. Deployment finished.",
		Platform: PlatformEmail,
		Date:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newTestOrchestrator(ext ActionExtractor, sum Summarizer, mutate func(*ExtractionConfig)) *ExtractionOrchestrator {
	cfg := DefaultExtractionConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewExtractionOrchestrator(ext, sum, cfg, zap.NewNop())
}

func TestExtract_StatusUpdatesProduceNothing(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{}
	o := newTestOrchestrator(ext, sum, nil)

	msgs := make([]Message, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, statusUpdateMsg(fmt.Sprintf("m%d", i)))
	}

	candidates, verdicts, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, verdicts)
	// Nothing survived the prefilter, so neither stage ran.
	assert.Empty(t, ext.calls)
	assert.Empty(t, sum.batches)
}

func TestExtract_ActionableMessageSurvivesAmongNoise(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{}
	o := newTestOrchestrator(ext, sum, nil)

	msgs := make([]Message, 0, 6)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, statusUpdateMsg(fmt.Sprintf("m%d", i)))
	}
	msgs = append(msgs, Message{
		ID:       "m5",
		Sender:   "alice@corp.com",
		Subject:  "Report review",
		Content:  "Please review the attached report by Friday",
		Platform: PlatformEmail,
		Date:     time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
	})

	candidates, verdicts, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "m5", candidates[0].SourceMessageID)
	assert.Contains(t, verdicts, "m5")

	// Only the survivor reached the cheap stage.
	require.Len(t, ext.calls, 1)
	require.Len(t, ext.calls[0], 1)
	assert.Equal(t, "m5", ext.calls[0][0].ID)
}

func TestExtract_PrefilterDropsShortAndGreetings(t *testing.T) {
	ext := &stubExtractor{}
	o := newTestOrchestrator(ext, &stubSummarizer{}, nil)

	msgs := []Message{
		{ID: "m1", Content: "ok", Platform: PlatformMessenger},
		{ID: "m2", Content: "Good morning!!!", Platform: PlatformMessenger},
		{ID: "m3", Content: "Could you confirm the launch date for the beta?", Platform: PlatformMessenger},
	}

	candidates, _, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "m3", candidates[0].SourceMessageID)
}

func TestExtract_PrefilterCountsCharactersNotBytes(t *testing.T) {
	ext := &stubExtractor{}
	o := newTestOrchestrator(ext, &stubSummarizer{}, nil)

	// The ack is 7 characters but 19 bytes; the length floor must
	// still reject it.
	msgs := []Message{
		{ID: "m1", Content: "네 알겠습니다", Platform: PlatformMessenger},
		{ID: "m2", Content: "금요일까지 분기 보고서를 검토하고 의견을 보내 주시기 바랍니다", Platform: PlatformMessenger},
	}

	candidates, _, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "m2", candidates[0].SourceMessageID)
}

func TestExtract_StatusUpdateWithActionKeywordSurvives(t *testing.T) {
	ext := &stubExtractor{}
	o := newTestOrchestrator(ext, &stubSummarizer{}, nil)

	m := statusUpdateMsg("m1")
	m.Content = "Status update: migration done, please review the rollback plan"

	candidates, _, err := o.Extract(context.Background(), rankedMessages(m), "me@corp.com")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestExtract_FalseVerdictDropsCandidate(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{required: func(id string) bool { return id != "m1" }}
	o := newTestOrchestrator(ext, sum, nil)

	msgs := []Message{
		{ID: "m1", Content: "Can you check whether the invoice went out?", Platform: PlatformMessenger},
		{ID: "m2", Content: "Please send me the final deck by Thursday", Platform: PlatformMessenger},
	}

	candidates, verdicts, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "m2", candidates[0].SourceMessageID)
	assert.Len(t, verdicts, 2)
}

func TestExtract_SummarizerFailureKeepsCandidates(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{err: errors.New("model unavailable")}
	o := newTestOrchestrator(ext, sum, nil)

	msgs := []Message{
		{ID: "m1", Content: "Can you check whether the invoice went out?", Platform: PlatformMessenger},
		{ID: "m2", Content: "Please send me the final deck by Thursday", Platform: PlatformMessenger},
	}

	candidates, verdicts, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Empty(t, verdicts)
}

func TestExtract_ExtractorErrorPropagates(t *testing.T) {
	ext := &stubExtractor{err: errors.New("boom")}
	o := newTestOrchestrator(ext, &stubSummarizer{}, nil)

	m := Message{ID: "m1", Content: "Please send me the final deck by Thursday", Platform: PlatformMessenger}

	_, _, err := o.Extract(context.Background(), rankedMessages(m), "me@corp.com")
	assert.Error(t, err)
}

func TestExtract_VerificationRunsInBatches(t *testing.T) {
	ext := &stubExtractor{}
	sum := &stubSummarizer{}
	o := newTestOrchestrator(ext, sum, func(cfg *ExtractionConfig) { cfg.BatchSize = 2 })

	msgs := make([]Message, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, Message{
			ID:       fmt.Sprintf("m%d", i),
			Subject:  fmt.Sprintf("Topic %d", i),
			Content:  fmt.Sprintf("Please review document number %d by Friday", i),
			Platform: PlatformMessenger,
		})
	}

	candidates, verdicts, err := o.Extract(context.Background(), rankedMessages(msgs...), "me@corp.com")
	require.NoError(t, err)
	assert.Len(t, candidates, 5)
	assert.Len(t, verdicts, 5)
	require.Len(t, sum.batches, 3)
	assert.Len(t, sum.batches[0], 2)
	assert.Len(t, sum.batches[1], 2)
	assert.Len(t, sum.batches[2], 1)
}

func TestExtract_ShortDescriptionsDiscarded(t *testing.T) {
	ext := &stubExtractor{}
	o := newTestOrchestrator(ext, &stubSummarizer{}, func(cfg *ExtractionConfig) { cfg.MinDescriptionLen = 200 })

	m := Message{ID: "m1", Content: "Please send me the final deck by Thursday", Platform: PlatformMessenger}

	candidates, _, err := o.Extract(context.Background(), rankedMessages(m), "me@corp.com")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
