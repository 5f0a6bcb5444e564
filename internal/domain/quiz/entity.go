// Package quiz contains the domain model for quiz sets and their daily
// generation. This is the core of the business logic - no external
// dependencies here.
package quiz

import (
	"fmt"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// OptionCount is the number of answer options every question carries.
// The wire format and the prompt both fix this at four.
const OptionCount = 4

// Question is a single multiple-choice question inside a quiz set.
// Option order is significant: CorrectIndex refers to the position in Options.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.Prompt == "" {
		return shared.WrapError("quiz", "Validate", shared.ErrEmptyValue, "question prompt is empty", nil)
	}
	if len(q.Options) != OptionCount {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidEntity,
			fmt.Sprintf("question has %d options, want %d", len(q.Options), OptionCount), nil)
	}
	for i, opt := range q.Options {
		if opt == "" {
			return shared.WrapError("quiz", "Validate", shared.ErrEmptyValue,
				fmt.Sprintf("option %d is empty", i), nil)
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return shared.WrapError("quiz", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("correct_index %d not in [0,%d]", q.CorrectIndex, OptionCount-1), nil)
	}
	if q.Explanation == "" {
		return shared.WrapError("quiz", "Validate", shared.ErrEmptyValue, "question explanation is empty", nil)
	}
	return nil
}

// ValidateQuestions checks a full generated batch: exactly want questions,
// each structurally valid.
func ValidateQuestions(questions []Question, want int) error {
	if len(questions) != want {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidEntity,
			fmt.Sprintf("got %d questions, want %d", len(questions), want), nil)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Status is the lifecycle state of a quiz set.
type Status string

const (
	// StatusPending - the set is waiting for the child to play it.
	StatusPending Status = "pending"
	// StatusCompleted - the child finished the set; reward settlement happens here.
	StatusCompleted Status = "completed"
	// StatusFailed - the set expired or was abandoned.
	StatusFailed Status = "failed"
)

// IsValid checks that the status is one of the closed set of values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a stored status string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", shared.WrapError("quiz", "ParseStatus", shared.ErrInvalidState,
			fmt.Sprintf("unknown status %q", raw), nil)
	}
	return s, nil
}

// Set is a persisted quiz set.
// Invariant: at most one Set with Automatic=true per (ChildID, calendar day).
// The day is recorded in CreatedOn and enforced by a storage-level unique
// constraint, not by application-side reads.
type Set struct {
	ID        int64
	ParentID  int64
	ChildID   int64
	Questions []Question
	Reward    shared.Cents
	Status    Status
	Automatic bool
	CreatedAt time.Time
	CreatedOn time.Time // date-truncated CreatedAt, local calendar day
}

// NewSet describes a quiz set about to be created. The repository assigns
// ID, CreatedAt and CreatedOn at insert time.
type NewSet struct {
	ParentID  int64
	ChildID   int64
	Questions []Question
	Reward    shared.Cents
	Automatic bool
}

// Validate checks a set before it is handed to the store.
func (n NewSet) Validate() error {
	if n.ParentID <= 0 {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidID, "parent id must be positive", nil)
	}
	if n.ChildID <= 0 {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidID, "child id must be positive", nil)
	}
	if !n.Reward.IsValid() {
		return shared.WrapError("quiz", "Validate", shared.ErrNegativeValue, "reward must be non-negative", nil)
	}
	if len(n.Questions) == 0 {
		return shared.WrapError("quiz", "Validate", shared.ErrEmptyValue, "quiz set has no questions", nil)
	}
	for i, q := range n.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}
