package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Status is the lifecycle state of a memory record. The only legal
// transition is StatusCurrent -> StatusSuperseded.
type Status string

const (
	StatusCurrent    Status = "current"
	StatusSuperseded Status = "superseded"
)

// Validate checks if the status is valid
func (s Status) Validate() error {
	switch s {
	case StatusCurrent, StatusSuperseded:
		return nil
	default:
		return goerr.New("invalid memory status", goerr.V("status", s))
	}
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusCurrent && next == StatusSuperseded
}

// MemoryRecord is a single versioned factual statement about a user.
// Text, Embedding, Categories, OccurredAt and SavedAt are immutable after
// creation; only Status and SupersededAt may change, exactly once.
type MemoryRecord struct {
	ID         MemoryID
	UserID     string
	Text       string
	Embedding  []float32
	Categories []string
	Sentiment  Sentiment
	OccurredAt time.Time
	SavedAt    time.Time

	Status       Status
	SupersededAt *time.Time
}

// IsCurrent reports whether the record is still considered valid.
func (m *MemoryRecord) IsCurrent() bool {
	return m.Status == StatusCurrent
}

// Validate checks the structural invariants of a record: superseded_at is
// set if and only if the record is superseded.
func (m *MemoryRecord) Validate() error {
	if m.ID == "" {
		return goerr.New("memory ID is empty")
	}
	if m.UserID == "" {
		return goerr.New("user ID is empty", goerr.V("id", m.ID))
	}
	if m.Text == "" {
		return goerr.New("memory text is empty", goerr.V("id", m.ID))
	}
	if len(m.Embedding) == 0 {
		return goerr.New("memory embedding is empty", goerr.V("id", m.ID))
	}
	if err := m.Status.Validate(); err != nil {
		return err
	}
	if m.Status == StatusSuperseded && m.SupersededAt == nil {
		return goerr.New("superseded record without superseded_at", goerr.V("id", m.ID))
	}
	if m.Status == StatusCurrent && m.SupersededAt != nil {
		return goerr.New("current record with superseded_at", goerr.V("id", m.ID))
	}
	return nil
}

// ScoredMemory is a retrieval result: a record plus its similarity score
// in [0, 1], where 1 is identical.
type ScoredMemory struct {
	Record *MemoryRecord
	Score  float64
}

// String renders the memory for prompt injection. Superseded records carry
// an explicit tag so the response generator can distinguish past from
// present facts.
func (s *ScoredMemory) String() string {
	tag := ""
	if !s.Record.IsCurrent() {
		tag = " [OLD/SUPERSEDED]"
	}
	return fmt.Sprintf("%s%s (Categories: %s) [Saved: %s] Relevance: %.2f",
		s.Record.Text,
		tag,
		strings.Join(s.Record.Categories, ", "),
		s.Record.SavedAt.Format("2006-01-02 15:04:05"),
		s.Score,
	)
}
