package quiz

import (
	"fmt"
	"strings"

	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// Cadence is the configured recurrence of automatic generation.
type Cadence string

const (
	// CadenceDaily - one automatic quiz set per calendar day.
	CadenceDaily Cadence = "daily"
)

// IsValid checks the cadence value.
func (c Cadence) IsValid() bool {
	return c == CadenceDaily
}

// Difficulty is the configured difficulty level of generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks the difficulty value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty parses a difficulty string, case-insensitively.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	if !d.IsValid() {
		return "", shared.WrapError("quiz", "ParseDifficulty", shared.ErrInvalidInput,
			fmt.Sprintf("unknown difficulty %q", raw), nil)
	}
	return d, nil
}

// Config is a per-child recurring quiz configuration.
// Read-only input to the generation pipeline; managed elsewhere.
type Config struct {
	ID       int64
	ChildID  int64
	Subject  string
	Age      int
	Level    Difficulty
	Quantity int
	Reward   shared.Cents
	Cadence  Cadence
	Active   bool
}

// Validate checks a config before it drives generation.
func (c Config) Validate() error {
	if c.ChildID <= 0 {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidID, "config child id must be positive", nil)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return shared.WrapError("quiz", "Validate", shared.ErrEmptyValue, "config subject is empty", nil)
	}
	if c.Age < 3 || c.Age > 17 {
		return shared.WrapError("quiz", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("config age %d not in [3,17]", c.Age), nil)
	}
	if !c.Level.IsValid() {
		return shared.WrapError("quiz", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("config level %q is not a known difficulty", c.Level), nil)
	}
	if c.Quantity < 1 || c.Quantity > 50 {
		return shared.WrapError("quiz", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("config quantity %d not in [1,50]", c.Quantity), nil)
	}
	if !c.Reward.IsValid() {
		return shared.WrapError("quiz", "Validate", shared.ErrNegativeValue, "config reward must be non-negative", nil)
	}
	return nil
}

// ScheduledConfig is a Config joined with the owning family's delivery
// details, as returned by the config resolver for a daily run.
type ScheduledConfig struct {
	Config
	ParentID              int64
	ParentPhone           string
	WhatsAppNotifications bool
}
