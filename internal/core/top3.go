package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Top3Rules holds the weight configuration for top-3 scoring.
type Top3Rules struct {
	PriorityHigh     float64
	PriorityMedium   float64
	PriorityLow      float64
	DeadlineEmphasis float64
	DeadlineBase     float64
	EvidencePerItem  float64
	EvidenceMaxBonus float64
	CCPenalty        float64
}

// DefaultTop3Rules returns the built-in weight configuration.
func DefaultTop3Rules() Top3Rules {
	return Top3Rules{
		PriorityHigh:     3.0,
		PriorityMedium:   2.0,
		PriorityLow:      1.0,
		DeadlineEmphasis: 24.0,
		DeadlineBase:     1.0,
		EvidencePerItem:  0.1,
		EvidenceMaxBonus: 0.5,
		CCPenalty:        0.7,
	}
}

type overlayRules struct {
	requester  map[string]float64
	keyword    map[string]float64
	actionType map[string]float64
}

func newOverlayRules() overlayRules {
	return overlayRules{
		requester:  make(map[string]float64),
		keyword:    make(map[string]float64),
		actionType: make(map[string]float64),
	}
}

func (o overlayRules) empty() bool {
	return len(o.requester) == 0 && len(o.keyword) == 0 && len(o.actionType) == 0
}

// Top3Selector scores pending TODO items and selects up to three for
// immediate attention. Weights can be adjusted directly or through
// natural language instructions; when an instruction establishes an
// overlay rule set, only matching items remain eligible.
type Top3Selector struct {
	mu              sync.Mutex
	rules           Top3Rules
	overlay         overlayRules
	lastInstruction string
	parser          RuleParser
	logger          *zap.Logger
}

// NewTop3Selector creates a selector with the given initial rules.
// The parser may be nil, in which case only heuristic instruction
// parsing is available.
func NewTop3Selector(rules Top3Rules, parser RuleParser, logger *zap.Logger) *Top3Selector {
	return &Top3Selector{
		rules:   rules,
		overlay: newOverlayRules(),
		parser:  parser,
		logger:  logger,
	}
}

// Rules returns a copy of the current weight configuration.
func (s *Top3Selector) Rules() Top3Rules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// LastInstruction returns the most recent natural language instruction
// that produced the current rules, or an empty string.
func (s *Top3Selector) LastInstruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInstruction
}

// SetRules updates weight values by name, clamping each into its valid
// range. Unknown keys are ignored.
func (s *Top3Selector) SetRules(weights map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRulesLocked(weights)
}

func (s *Top3Selector) setRulesLocked(weights map[string]float64) {
	for key, value := range weights {
		switch key {
		case "priority_high":
			s.rules.PriorityHigh = clamp(value, 0, 10)
		case "priority_medium":
			s.rules.PriorityMedium = clamp(value, 0, 10)
		case "priority_low":
			s.rules.PriorityLow = clamp(value, 0, 10)
		case "deadline_emphasis":
			s.rules.DeadlineEmphasis = clamp(value, 0, 100)
		case "deadline_base":
			s.rules.DeadlineBase = clamp(value, 0, 10)
		case "evidence_per_item":
			s.rules.EvidencePerItem = clamp(value, 0, 1)
		case "evidence_max_bonus":
			if value < 0 {
				value = 0
			}
			s.rules.EvidenceMaxBonus = value
		case "cc_penalty":
			s.rules.CCPenalty = clamp(value, 0, 1)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Top3Selector) mergeOverlayLocked(parsed *ParsedRules) {
	if parsed.Reset {
		s.overlay = newOverlayRules()
	}
	mergeBonuses(s.overlay.requester, parsed.Requester)
	mergeBonuses(s.overlay.keyword, parsed.Keyword)
	mergeBonuses(s.overlay.actionType, parsed.ActionType)
}

func mergeBonuses(dst, src map[string]float64) {
	for key, bonus := range src {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		dst[key] = clamp(bonus, -10, 10)
	}
}

// Score computes the weighted top-3 score of one item at the given
// time. Items without a deadline get a neutral deadline factor.
func (s *Top3Selector) Score(item TodoItem, now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreLocked(item, now)
}

func (s *Top3Selector) scoreLocked(item TodoItem, now time.Time) float64 {
	var wPriority float64
	switch item.Priority {
	case PriorityHigh:
		wPriority = s.rules.PriorityHigh
	case PriorityMedium:
		wPriority = s.rules.PriorityMedium
	default:
		wPriority = s.rules.PriorityLow
	}

	wDeadline := 1.0
	if item.Deadline != nil {
		hoursLeft := item.Deadline.Sub(now).Hours()
		if hoursLeft < 0 {
			hoursLeft = 0
		}
		wDeadline = s.rules.DeadlineBase + s.rules.DeadlineEmphasis/(s.rules.DeadlineEmphasis+hoursLeft)
	}

	evidence := s.rules.EvidencePerItem * float64(len(item.Evidence))
	if evidence > s.rules.EvidenceMaxBonus {
		evidence = s.rules.EvidenceMaxBonus
	}
	wEvidence := 1.0 + evidence

	priorityBonus := 0.0
	ruleMultiplier := 1.0

	requester := strings.ToLower(item.Requester)
	for match, bonus := range s.overlay.requester {
		if strings.Contains(requester, match) {
			priorityBonus += bonus
			ruleMultiplier += bonus * 0.25
		}
	}

	textFields := strings.ToLower(item.Title + " " + item.Description + " " + item.ActionType)
	for match, bonus := range s.overlay.keyword {
		if strings.Contains(textFields, match) {
			priorityBonus += bonus * 0.5
			ruleMultiplier += bonus * 0.25
		}
	}

	actionType := strings.ToLower(item.ActionType)
	for match, bonus := range s.overlay.actionType {
		if strings.Contains(actionType, match) {
			priorityBonus += bonus * 0.5
			ruleMultiplier += bonus * 0.25
		}
	}

	ruleMultiplier = clamp(ruleMultiplier, 0.5, 6.0)

	priorityTerm := wPriority + priorityBonus
	if priorityBonus > 0 {
		// Boosted items must outrank every unboosted high item.
		floor := s.rules.PriorityHigh + priorityBonus
		if floor < 3.5 {
			floor = 3.5
		}
		if priorityTerm < floor {
			priorityTerm = floor
		}
	}
	if priorityTerm < 0.1 {
		priorityTerm = 0.1
	}

	ccPenalty := 1.0
	switch item.RecipientType {
	case RecipientCC:
		ccPenalty = s.rules.CCPenalty
	case RecipientBCC:
		ccPenalty = s.rules.CCPenalty * 0.9
	}

	return priorityTerm * ruleMultiplier * wDeadline * wEvidence * ccPenalty
}

func (s *Top3Selector) matchesOverlayLocked(item TodoItem) bool {
	requester := strings.ToLower(item.Requester)
	for match := range s.overlay.requester {
		if strings.Contains(requester, match) {
			return true
		}
	}
	textFields := strings.ToLower(item.Title + " " + item.Description + " " + item.ActionType)
	for match := range s.overlay.keyword {
		if strings.Contains(textFields, match) {
			return true
		}
	}
	actionType := strings.ToLower(item.ActionType)
	for match := range s.overlay.actionType {
		if strings.Contains(actionType, match) {
			return true
		}
	}
	return false
}

// PickTop3 returns the ids of up to three items to surface. Items
// already marked done are never eligible. When overlay rules are
// active, only items matching at least one rule are eligible; this
// can legitimately return fewer than three ids, or none.
func (s *Top3Selector) PickTop3(items []TodoItem, now time.Time) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := make([]TodoItem, 0, len(items))
	for _, item := range items {
		if item.Status == StatusDone {
			continue
		}
		eligible = append(eligible, item)
	}

	forced := !s.overlay.empty()
	if forced {
		matched := make([]TodoItem, 0, len(eligible))
		for _, item := range eligible {
			if s.matchesOverlayLocked(item) {
				matched = append(matched, item)
			}
		}
		s.logger.Info("Selecting top items in rule-forced mode",
			zap.Int("candidates", len(eligible)),
			zap.Int("matched", len(matched)))
		eligible = matched
	}

	type scored struct {
		item  TodoItem
		score float64
	}
	ranked := make([]scored, len(eligible))
	for i, item := range eligible {
		ranked[i] = scored{item: item, score: s.scoreLocked(item, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].item.CreatedAt.After(ranked[j].item.CreatedAt)
	})

	top := make(map[string]bool, 3)
	for _, r := range ranked {
		if len(top) >= 3 {
			break
		}
		if r.item.ID != "" {
			top[r.item.ID] = true
		}
	}
	return top
}

// DescribeRules renders the current configuration as human readable
// text, for display after rule changes.
func (s *Top3Selector) DescribeRules() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.describeLocked()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyNaturalLanguageRules interprets a free-text instruction and
// updates the rules. A cheap heuristic parse is attempted first; the
// injected parser handles whatever the heuristics cannot. Returns a
// status message and the resulting rule description.
func (s *Top3Selector) ApplyNaturalLanguageRules(ctx context.Context, text string, reset bool) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := strings.TrimSpace(text)
	if reset || cleaned == "" {
		s.resetLocked(reset, cleaned)
		return "Rules reset to defaults.", s.describeLocked(), nil
	}

	parsed := heuristicParseRules(cleaned)
	if parsed == nil && s.parser != nil {
		s.logger.Debug("Heuristic rule parse failed, falling back to parser",
			zap.String("instruction", cleaned))
		var err error
		parsed, err = s.parser.ParseRules(ctx, cleaned)
		if err != nil {
			return "", s.describeLocked(), fmt.Errorf("failed to parse rule instruction: %w", err)
		}
	}
	if parsed == nil {
		return "Could not interpret the instruction, please be more specific.", s.describeLocked(), nil
	}

	if parsed.Reset {
		s.resetLocked(true, "")
		return "Rules reset to defaults.", s.describeLocked(), nil
	}

	if len(parsed.Weights) > 0 {
		s.setRulesLocked(parsed.Weights)
	}
	s.mergeOverlayLocked(parsed)
	s.lastInstruction = cleaned

	return "Rules updated.", s.describeLocked(), nil
}

func (s *Top3Selector) resetLocked(reset bool, instruction string) {
	if reset {
		s.lastInstruction = ""
	} else {
		s.lastInstruction = instruction
	}
	s.rules = DefaultTop3Rules()
	s.overlay = newOverlayRules()
}

func (s *Top3Selector) describeLocked() string {
	overlay := s.overlay
	rules := s.rules
	var b strings.Builder
	if !overlay.empty() {
		b.WriteString("Rule-forced mode: only items matching the active rules are shown\n")
		if len(overlay.requester) > 0 {
			fmt.Fprintf(&b, "  requesters: %s\n", strings.Join(sortedKeys(overlay.requester), ", "))
		}
		if len(overlay.keyword) > 0 {
			fmt.Fprintf(&b, "  keywords: %s\n", strings.Join(sortedKeys(overlay.keyword), ", "))
		}
		if len(overlay.actionType) > 0 {
			fmt.Fprintf(&b, "  action types: %s\n", strings.Join(sortedKeys(overlay.actionType), ", "))
		}
	} else {
		b.WriteString("Score mode: weighted selection without overlay rules\n")
	}
	fmt.Fprintf(&b, "priority weights H/M/L: %.2f/%.2f/%.2f\n",
		rules.PriorityHigh, rules.PriorityMedium, rules.PriorityLow)
	fmt.Fprintf(&b, "deadline emphasis: %.1f hours\n", rules.DeadlineEmphasis)
	fmt.Fprintf(&b, "evidence weight: %.2f per item (max %.2f)\n",
		rules.EvidencePerItem, rules.EvidenceMaxBonus)
	fmt.Fprintf(&b, "CC/BCC penalty: %.2f", rules.CCPenalty)
	return b.String()
}

var (
	requesterFromPattern = regexp.MustCompile(`(?i)(?:requests?|tasks?|items?|anything)\s+from\s+([a-zA-Z][\w.@-]+)`)
	requesterPossessive  = regexp.MustCompile(`(?i)([a-zA-Z][\w.@-]+)'s\s+(?:requests?|tasks?|items?|todos?)`)
	requesterPrioritize  = regexp.MustCompile(`(?i)prioriti[sz]e\s+([a-zA-Z][\w.@-]+)`)
)

var requesterStopwords = map[string]bool{
	"me": true, "my": true, "the": true, "all": true, "any": true,
	"everyone": true, "meetings": true, "deadlines": true, "reviews": true,
	"tasks": true, "responses": true, "high": true, "urgent": true,
}

// heuristicParseRules handles the common instruction shapes without a
// model call. Returns nil when the text needs the full parser.
func heuristicParseRules(text string) *ParsedRules {
	lower := strings.ToLower(text)

	for _, word := range []string{"reset", "default", "clear rules", "start over"} {
		if strings.Contains(lower, word) {
			return &ParsedRules{Reset: true}
		}
	}

	// Compound conditions need the full parser.
	for _, word := range []string{" and ", " cc", " bcc", " unless", " except"} {
		if strings.Contains(lower, word) {
			return nil
		}
	}

	parsed := &ParsedRules{
		Weights:    make(map[string]float64),
		Requester:  make(map[string]float64),
		Keyword:    make(map[string]float64),
		ActionType: make(map[string]float64),
	}
	defaults := DefaultTop3Rules()

	topPriority := containsAny(lower, "always", "must", "most important", "above everything", "first")
	highPriority := containsAny(lower, "urgent", "important", "prioritize", "priority", "higher", "critical")

	bonus := 2.0
	if topPriority {
		bonus = 8.0
	} else if highPriority {
		bonus = 4.0
	}

	if containsAny(lower, "high priority", "urgent", "critical") {
		parsed.Weights["priority_high"] = defaults.PriorityHigh + 2.0
	}
	if containsAny(lower, "medium priority") {
		parsed.Weights["priority_medium"] = defaults.PriorityMedium + 0.5
	}
	if containsAny(lower, "low priority", "less important") {
		parsed.Weights["priority_low"] = 0.2
	}

	names := make(map[string]bool)
	for _, re := range []*regexp.Regexp{requesterFromPattern, requesterPossessive, requesterPrioritize} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.ToLower(m[1])
			if len(name) >= 2 && !requesterStopwords[name] {
				names[name] = true
			}
		}
	}
	for name := range names {
		parsed.Requester[name] = bonus
	}

	for _, actionType := range []string{"meeting", "deadline", "review", "task", "response"} {
		if strings.Contains(lower, actionType) && (topPriority || highPriority) {
			parsed.ActionType[actionType] = bonus
		}
	}

	if len(parsed.Weights) == 0 && len(parsed.Requester) == 0 && len(parsed.ActionType) == 0 {
		return nil
	}
	return parsed
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
