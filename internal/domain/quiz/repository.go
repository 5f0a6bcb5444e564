package quiz

import (
	"context"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/notification"
)

// Repository persists quiz sets.
type Repository interface {
	// CreateSet writes a quiz set inside a single transaction that also
	// verifies the parent balance covers the reward and, when notify is
	// non-nil, records the pending notification. Returns
	// shared.ErrInsufficientBalance when the balance check fails,
	// shared.ErrSetExistsToday when the set is automatic and one already
	// exists for the child on the given day, and shared.ErrPersistence
	// for any other write failure.
	CreateSet(ctx context.Context, set *NewSet, day time.Time, notify *notification.Notification) (*Set, error)

	// ExistsAutomaticToday reports whether the child already has an
	// automatic quiz set created on the given day. Advisory only: the
	// unique index inside CreateSet remains the authority.
	ExistsAutomaticToday(ctx context.Context, childID int64, day time.Time) (bool, error)

	// GetSet loads a quiz set by ID.
	GetSet(ctx context.Context, id int64) (*Set, error)
}

// ConfigSource resolves the quiz configurations due for a scheduled run.
type ConfigSource interface {
	// ListDueDaily returns every active daily configuration joined with the
	// owning family's delivery details. Returns shared.ErrConfigFetch when
	// the lookup fails.
	ListDueDaily(ctx context.Context) ([]ScheduledConfig, error)
}

// Generator produces quiz questions from a configuration.
type Generator interface {
	// Generate returns exactly cfg.Quantity validated questions or an error
	// wrapping shared.ErrGeneration.
	Generate(ctx context.Context, cfg Config) ([]Question, error)
}
