package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTodoDedupThreshold is the similarity above which two final
// todo items from different messages are considered the same task.
// Deliberately looser than the candidate-level threshold.
const DefaultTodoDedupThreshold = 0.7

// AnalysisRequest is one synthesis request for one persona.
type AnalysisRequest struct {
	PersonaID      string
	PersonaName    string
	UserEmail      string
	TimeRangeStart *time.Time
	TimeRangeEnd   *time.Time
	DataVersion    string
	Messages       []Message
}

// SynthesisService turns ranked messages into a deduplicated,
// rebalanced todo list with top-3 flags. It is the composition root
// of the pipeline; each stage stays independently testable.
type SynthesisService struct {
	ranker        PriorityRanker
	orchestrator  *ExtractionOrchestrator
	filter        *RecipientPrecedenceFilter
	rebalancer    *PriorityRebalancer
	selector      *Top3Selector
	cache         *PersonaResultCache
	repo          TodoRepository
	todoThreshold float64
	logger        *zap.Logger
	now           func() time.Time
}

// NewSynthesisService creates a synthesis service. The repository may
// be nil when persistence is handled elsewhere.
func NewSynthesisService(
	ranker PriorityRanker,
	orchestrator *ExtractionOrchestrator,
	filter *RecipientPrecedenceFilter,
	rebalancer *PriorityRebalancer,
	selector *Top3Selector,
	cache *PersonaResultCache,
	repo TodoRepository,
	todoDedupThreshold float64,
	logger *zap.Logger,
) *SynthesisService {
	if todoDedupThreshold <= 0 {
		todoDedupThreshold = DefaultTodoDedupThreshold
	}
	return &SynthesisService{
		ranker:        ranker,
		orchestrator:  orchestrator,
		filter:        filter,
		rebalancer:    rebalancer,
		selector:      selector,
		cache:         cache,
		repo:          repo,
		todoThreshold: todoDedupThreshold,
		logger:        logger,
		now:           time.Now,
	}
}

// Analyze runs the full pipeline for one request, short-circuiting on
// a cache hit. The second return value reports whether the result
// came from the cache.
func (s *SynthesisService) Analyze(ctx context.Context, req AnalysisRequest) (*CachedResult, bool, error) {
	key := CacheKey{
		PersonaID:      req.PersonaID,
		TimeRangeStart: req.TimeRangeStart,
		TimeRangeEnd:   req.TimeRangeEnd,
		DataVersion:    req.DataVersion,
	}
	if cached := s.cache.Get(key); cached != nil {
		s.logger.Debug("Serving cached analysis", zap.Stringer("key", key))
		return cached, true, nil
	}

	ranked, err := s.ranker.Rank(ctx, req.Messages)
	if err != nil {
		return nil, false, fmt.Errorf("failed to rank messages: %w", err)
	}

	todos, summary, err := s.Synthesize(ctx, req.PersonaName, req.UserEmail, req.Messages, ranked)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	result := &CachedResult{
		Key:            key,
		PersonaID:      req.PersonaID,
		Todos:          todos,
		Messages:       req.Messages,
		Summary:        summary,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.cache.Put(key, result)
	return result, false, nil
}

// Synthesize runs ranking output through extraction, deduplication,
// rebalancing and top-3 selection, then persists the outcome. The
// returned todo list is sorted by priority, then by closest deadline.
func (s *SynthesisService) Synthesize(
	ctx context.Context,
	personaName string,
	userEmail string,
	messages []Message,
	ranked []RankedMessage,
) ([]TodoItem, AnalysisSummary, error) {
	summary := AnalysisSummary{TotalMessages: len(messages)}

	// First precedence pass over raw messages.
	filtered := s.filter.FilterMessages(messages)
	surviving := make(map[string]bool, len(filtered))
	for _, m := range filtered {
		surviving[m.ID] = true
		if m.Platform == PlatformEmail {
			summary.EmailCount++
		} else {
			summary.ChatCount++
		}
	}

	kept := make([]RankedMessage, 0, len(ranked))
	for _, rm := range ranked {
		if surviving[rm.Message.ID] {
			kept = append(kept, rm)
		}
	}

	candidates, verdicts, err := s.orchestrator.Extract(ctx, kept, userEmail)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to extract actions: %w", err)
	}

	// Second precedence pass, now over merged analysis results.
	results := s.filter.FilterResults(mergeResults(kept, candidates, verdicts))

	now := s.now()
	todos := s.generateTodos(results, personaName, now)
	todos = s.rebalancer.Rebalance(todos, now)
	sortTodos(todos)

	top3 := s.selector.PickTop3(todos, now)
	for i := range todos {
		todos[i].IsTop3 = top3[todos[i].ID]
	}

	if s.repo != nil {
		if err := s.repo.SaveAll(ctx, todos); err != nil {
			return nil, summary, fmt.Errorf("failed to persist todo items: %w", err)
		}
		if err := s.repo.UpdateTop3Flags(ctx, top3); err != nil {
			return nil, summary, fmt.Errorf("failed to persist top-3 flags: %w", err)
		}
	}

	summary.TodoCount = len(todos)
	for _, t := range todos {
		switch t.Priority {
		case PriorityHigh:
			summary.HighPriorityCount++
		case PriorityMedium:
			summary.MediumPriorityCount++
		default:
			summary.LowPriorityCount++
		}
	}

	s.logger.Info("Synthesis complete",
		zap.String("persona", personaName),
		zap.Int("messages", len(messages)),
		zap.Int("todos", len(todos)),
		zap.Int("top3", len(top3)))
	return todos, summary, nil
}

// mergeResults joins ranking, candidates and verdicts into one record
// per message, preserving rank order. Keyed by source message id so
// the merge is independent of batch completion order.
func mergeResults(ranked []RankedMessage, candidates []ActionCandidate, verdicts map[string]Verdict) []AnalysisResult {
	bySource := make(map[string][]ActionCandidate)
	for _, c := range candidates {
		bySource[c.SourceMessageID] = append(bySource[c.SourceMessageID], c)
	}

	results := make([]AnalysisResult, 0, len(ranked))
	for _, rm := range ranked {
		result := AnalysisResult{
			Message:       rm.Message,
			PriorityLevel: rm.PriorityLevel,
			OverallScore:  rm.OverallScore,
			Reasoning:     rm.Reasoning,
			Candidates:    bySource[rm.Message.ID],
		}
		if v, ok := verdicts[rm.Message.ID]; ok {
			verdict := v
			result.Verdict = &verdict
		}
		results = append(results, result)
	}
	return results
}

// generateTodos converts analysis results into todo items, keeping at
// most one item per source message and collapsing near-duplicate
// tasks across messages.
func (s *SynthesisService) generateTodos(results []AnalysisResult, personaName string, now time.Time) []TodoItem {
	var todos []TodoItem
	for _, result := range results {
		if len(result.Candidates) == 0 {
			continue
		}
		best := bestCandidate(result.Candidates)
		todos = append(todos, s.newTodoItem(result, best, personaName, now))
	}

	// Cross-message collapse: two messages about the same task should
	// not produce two todo items.
	kept := make([]TodoItem, 0, len(todos))
	for _, todo := range todos {
		duplicate := false
		for i, existing := range kept {
			if Similarity(todo.Title+" "+todo.Description, existing.Title+" "+existing.Description) < s.todoThreshold {
				continue
			}
			duplicate = true
			if ActionTypeRank(todo.ActionType) > ActionTypeRank(existing.ActionType) {
				kept[i] = todo
			}
			break
		}
		if !duplicate {
			kept = append(kept, todo)
		}
	}
	if dropped := len(todos) - len(kept); dropped > 0 {
		s.logger.Debug("Collapsed duplicate todo items", zap.Int("dropped", dropped))
	}
	return kept
}

// bestCandidate picks the single candidate to keep for one message:
// highest action type rank, most recent on ties.
func bestCandidate(candidates []ActionCandidate) ActionCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		br, cr := ActionTypeRank(best.ActionType), ActionTypeRank(c.ActionType)
		if cr > br || (cr == br && c.CreatedAt.After(best.CreatedAt)) {
			best = c
		}
	}
	return best
}

func (s *SynthesisService) newTodoItem(result AnalysisResult, c ActionCandidate, personaName string, now time.Time) TodoItem {
	requester := c.Requester
	if requester == "" {
		requester = result.Message.Sender
	}
	sourceType := SourceTypeMessage
	if result.Message.Platform == PlatformEmail {
		sourceType = SourceTypeMail
	}
	title := c.Title
	if title == "" {
		title = c.Description
	}
	return TodoItem{
		ID:              uuid.New().String(),
		Title:           title,
		Description:     c.Description,
		Priority:        result.PriorityLevel,
		RawPriority:     result.PriorityLevel,
		Deadline:        c.Deadline,
		Requester:       requester,
		ActionType:      c.ActionType,
		SourceMessageID: c.SourceMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          StatusPending,
		RecipientType:   result.Message.RecipientType,
		SourceType:      sourceType,
		Evidence:        result.Reasoning,
		PersonaName:     personaName,
	}
}

// sortTodos orders items by priority descending, then by ascending
// deadline with deadline-less items last.
func sortTodos(todos []TodoItem) {
	sort.SliceStable(todos, func(i, j int) bool {
		pi, pj := priorityBaseWeight(todos[i].Priority), priorityBaseWeight(todos[j].Priority)
		if pi != pj {
			return pi > pj
		}
		di, dj := todos[i].Deadline, todos[j].Deadline
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
}

// MarkDone marks one item done and drops the persona's cached
// results so the next analysis reflects the change.
func (s *SynthesisService) MarkDone(ctx context.Context, personaID, id string) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.MarkDone(ctx, id, s.now()); err != nil {
		return fmt.Errorf("failed to mark todo done: %w", err)
	}
	s.cache.Invalidate(personaID)
	return nil
}

// Snooze hides one item until the given time and invalidates the
// persona's cached results.
func (s *SynthesisService) Snooze(ctx context.Context, personaID, id string, until time.Time) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Snooze(ctx, id, until, s.now()); err != nil {
		return fmt.Errorf("failed to snooze todo: %w", err)
	}
	s.cache.Invalidate(personaID)
	return nil
}

// ReleaseSnoozed returns expired snoozes to pending state.
func (s *SynthesisService) ReleaseSnoozed(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.ReleaseSnoozed(ctx, s.now())
}
