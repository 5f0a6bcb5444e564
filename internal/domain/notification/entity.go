// Package notification models outbound parent messages about new quizzes.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// Kind distinguishes how a quiz set came to exist, which selects the
// message template sent to the parent.
type Kind string

const (
	// KindAutomatic - the set was produced by the daily scheduler.
	KindAutomatic Kind = "automatic"
	// KindManual - the set was requested through the API.
	KindManual Kind = "manual"
)

// Portuguese message bodies sent to parents.
const (
	MessageAutomatic = "Novo quiz personalizado disponível!"
	MessageManual    = "Novo quiz disponível para seu filho!"
)

// MessageFor returns the body for a notification kind.
func MessageFor(kind Kind) string {
	if kind == KindManual {
		return MessageManual
	}
	return MessageAutomatic
}

// Status tracks delivery of a recorded notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is a recorded outbound message about a child's quiz set,
// delivered to the parent's phone.
type Notification struct {
	ID        int64
	QuizSetID int64
	ChildID   int64
	ParentID  int64
	Phone     string
	Kind      Kind
	Body      string
	Status    Status
	CreatedAt time.Time
	SentAt    *time.Time
}

// Validate checks a notification before it is recorded.
func (n Notification) Validate() error {
	if n.QuizSetID <= 0 {
		return shared.WrapError("notification", "Validate", shared.ErrInvalidID, "quiz set id must be positive", nil)
	}
	if n.ChildID <= 0 {
		return shared.WrapError("notification", "Validate", shared.ErrInvalidID, "child id must be positive", nil)
	}
	if n.ParentID <= 0 {
		return shared.WrapError("notification", "Validate", shared.ErrInvalidID, "parent id must be positive", nil)
	}
	if strings.TrimSpace(n.Phone) == "" {
		return shared.WrapError("notification", "Validate", shared.ErrEmptyValue, "phone is empty", nil)
	}
	if strings.TrimSpace(n.Body) == "" {
		return shared.WrapError("notification", "Validate", shared.ErrEmptyValue, "body is empty", nil)
	}
	return nil
}

// Sender delivers a message to a parent's phone. Implementations must be
// safe for concurrent use; delivery failures wrap shared.ErrNotification.
type Sender interface {
	Send(ctx context.Context, phone, body string) error
}

// Store updates delivery state for recorded notifications.
type Store interface {
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}
