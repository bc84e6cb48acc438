package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Platform identifies the channel a message arrived on.
type Platform string

const (
	PlatformEmail     Platform = "email"
	PlatformMessenger Platform = "messenger"
)

// RecipientType describes how the persona received an email.
type RecipientType string

const (
	RecipientTo   RecipientType = "to"
	RecipientCC   RecipientType = "cc"
	RecipientBCC  RecipientType = "bcc"
	RecipientFrom RecipientType = "from"
)

// Priority is one of the three coarse priority buckets.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status is the lifecycle state of a todo item.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusSnoozed Status = "snoozed"
)

// Message is a normalized inbound message. Immutable for this core.
type Message struct {
	ID            string
	Sender        string
	Subject       string
	Content       string
	Platform      Platform
	Date          time.Time
	RecipientType RecipientType
}

// Text returns the combined subject and content used for filtering.
func (m Message) Text() string {
	if m.Subject == "" {
		return m.Content
	}
	if m.Content == "" {
		return m.Subject
	}
	return m.Subject + " " + m.Content
}

// RankedMessage pairs a message with the external ranker's verdict.
type RankedMessage struct {
	Message       Message
	PriorityLevel Priority
	OverallScore  float64
	Reasoning     []string
}

// ActionCandidate is an unverified action extracted from a message by
// cheap heuristics. It may be a duplicate and may turn out unnecessary.
type ActionCandidate struct {
	ActionID        string
	Title           string
	Description     string
	Priority        Priority
	Deadline        *time.Time
	Requester       string
	ActionType      string
	SourceMessageID string
	CreatedAt       time.Time
}

// Verdict is the expensive-stage answer for one source message.
type Verdict struct {
	OriginalID     string
	ActionRequired bool
	Summary        string
}

// AnalysisResult is one message merged with everything the pipeline
// learned about it: rank, verdict, surviving candidates.
type AnalysisResult struct {
	Message       Message
	PriorityLevel Priority
	OverallScore  float64
	Reasoning     []string
	Verdict       *Verdict
	Candidates    []ActionCandidate
}

// TodoItem is a candidate that survived deduplication, verification
// and rebalancing.
type TodoItem struct {
	ID              string
	Title           string
	Description     string
	Priority        Priority
	RawPriority     Priority
	Deadline        *time.Time
	Requester       string
	ActionType      string
	SourceMessageID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Status          Status
	SnoozeUntil     *time.Time
	RecipientType   RecipientType
	SourceType      string
	IsTop3          bool
	Evidence        []string
	PersonaName     string
	Project         string
}

// SourceTypeMail and SourceTypeMessage label where a todo came from.
const (
	SourceTypeMail    = "mail"
	SourceTypeMessage = "message"
)

// CacheKey identifies one analysis snapshot. Equality covers persona,
// time range and data version; a bumped data version always misses.
type CacheKey struct {
	PersonaID      string
	TimeRangeStart *time.Time
	TimeRangeEnd   *time.Time
	DataVersion    string
}

// Hash returns the fixed-width digest used for cache storage lookup.
func (k CacheKey) Hash() string {
	start, end := "", ""
	if k.TimeRangeStart != nil {
		start = k.TimeRangeStart.UTC().Format(time.RFC3339)
	}
	if k.TimeRangeEnd != nil {
		end = k.TimeRangeEnd.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(k.PersonaID + "|" + start + "|" + end + "|" + k.DataVersion))
	return hex.EncodeToString(sum[:])[:16]
}

func (k CacheKey) String() string {
	return fmt.Sprintf("CacheKey(%s, v%s)", k.PersonaID, k.DataVersion)
}

// AnalysisSummary holds the per-run counters surfaced to callers.
type AnalysisSummary struct {
	TotalMessages       int
	EmailCount          int
	ChatCount           int
	TodoCount           int
	HighPriorityCount   int
	MediumPriorityCount int
	LowPriorityCount    int
}

// CachedResult is a completed synthesis run stored under its key.
type CachedResult struct {
	Key            CacheKey
	PersonaID      string
	Todos          []TodoItem
	Messages       []Message
	Summary        AnalysisSummary
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
