// Package generate orchestrates quiz-set creation: resolve inputs, call
// the generator, persist transactionally, then notify best-effort.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/family"
	"github.com/kidsbank/quizhub/internal/domain/notification"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
	"github.com/kidsbank/quizhub/pkg/timeutil"
)

// Outcome describes what GenerateForChild did for one child.
type Outcome struct {
	// Set is the created quiz set. Nil when Skipped.
	Set *quiz.Set

	// Skipped is true when an automatic set already existed for the day,
	// so nothing was generated or written.
	Skipped bool

	// Notified is true when the WhatsApp message was delivered.
	Notified bool

	// NotifyErr holds the delivery error, if any. Informational only.
	NotifyErr error
}

// Service runs the generation pipeline for a single child.
type Service struct {
	repo     quiz.Repository
	families family.Repository
	gen      quiz.Generator
	sender   notification.Sender
	statuses notification.Store
	loc      *time.Location
	logger   *slog.Logger
}

// NewService creates a generation service. loc is the timezone that defines
// the one-set-per-day calendar; nil means São Paulo.
func NewService(
	repo quiz.Repository,
	families family.Repository,
	gen quiz.Generator,
	sender notification.Sender,
	statuses notification.Store,
	loc *time.Location,
	logger *slog.Logger,
) *Service {
	if loc == nil {
		loc = timeutil.SaoPauloTZ
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		families: families,
		gen:      gen,
		sender:   sender,
		statuses: statuses,
		loc:      loc,
		logger:   logger.With("component", "generate"),
	}
}

// GenerateForChild runs the full pipeline for one scheduled configuration:
// pre-check, generate, persist, notify. The pre-check saves a generation
// call on reruns; the unique index inside the repository remains the real
// guard, so a lost race still ends as a skip, not a duplicate.
func (s *Service) GenerateForChild(ctx context.Context, sc quiz.ScheduledConfig) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	day := time.Now().In(s.loc)

	exists, err := s.repo.ExistsAutomaticToday(ctx, sc.ChildID, day)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("quiz set already exists, skipping",
			"child_id", sc.ChildID)
		return &Outcome{Skipped: true}, nil
	}

	questions, err := s.gen.Generate(ctx, sc.Config)
	if err != nil {
		return nil, err
	}

	set := &quiz.NewSet{
		ParentID:  sc.ParentID,
		ChildID:   sc.ChildID,
		Questions: questions,
		Reward:    sc.Reward,
		Automatic: true,
	}

	var notify *notification.Notification
	if sc.WhatsAppNotifications && sc.ParentPhone != "" {
		notify = &notification.Notification{
			ChildID:  sc.ChildID,
			ParentID: sc.ParentID,
			Phone:    sc.ParentPhone,
			Kind:     notification.KindAutomatic,
			Body:     notification.MessageFor(notification.KindAutomatic),
		}
	}

	created, err := s.repo.CreateSet(ctx, set, day, notify)
	if err != nil {
		if errors.Is(err, shared.ErrSetExistsToday) {
			s.logger.Info("lost creation race, skipping",
				"child_id", sc.ChildID)
			return &Outcome{Skipped: true}, nil
		}
		return nil, err
	}

	outcome := &Outcome{Set: created}
	s.deliver(ctx, notify, outcome)

	s.logger.Info("quiz set created",
		"child_id", sc.ChildID,
		"quiz_set_id", created.ID,
		"questions", len(created.Questions),
		"notified", outcome.Notified)

	return outcome, nil
}

// ManualRequest describes an on-demand generation request.
type ManualRequest struct {
	ChildID               int64
	Subject               string
	Age                   int
	Level                 quiz.Difficulty
	Quantity              int
	Reward                shared.Cents
	WhatsAppNotifications bool
}

// GenerateManual runs the pipeline for an on-demand request. Manual sets
// are not subject to the one-per-day rule.
func (s *Service) GenerateManual(ctx context.Context, req ManualRequest) (*Outcome, error) {
	child, err := s.families.GetChild(ctx, req.ChildID)
	if err != nil {
		return nil, err
	}
	parent, err := s.families.GetParent(ctx, child.ParentID)
	if err != nil {
		return nil, err
	}

	cfg := quiz.Config{
		ChildID:  child.ID,
		Subject:  req.Subject,
		Age:      req.Age,
		Level:    req.Level,
		Quantity: req.Quantity,
		Reward:   req.Reward,
		Cadence:  quiz.CadenceDaily,
		Active:   true,
	}
	if cfg.Age == 0 {
		cfg.Age = child.Age
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	questions, err := s.gen.Generate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	set := &quiz.NewSet{
		ParentID:  parent.ID,
		ChildID:   child.ID,
		Questions: questions,
		Reward:    req.Reward,
		Automatic: false,
	}

	var notify *notification.Notification
	if req.WhatsAppNotifications && parent.Phone != "" {
		notify = &notification.Notification{
			ChildID:  child.ID,
			ParentID: parent.ID,
			Phone:    parent.Phone,
			Kind:     notification.KindManual,
			Body:     notification.MessageFor(notification.KindManual),
		}
	}

	created, err := s.repo.CreateSet(ctx, set, time.Now().In(s.loc), notify)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Set: created}
	s.deliver(ctx, notify, outcome)

	return outcome, nil
}

// deliver sends the recorded notification after the transaction committed.
// Failures are logged and surfaced in the outcome, never as an error: the
// quiz set exists whether or not the parent hears about it.
func (s *Service) deliver(ctx context.Context, notify *notification.Notification, outcome *Outcome) {
	if notify == nil || s.sender == nil {
		return
	}

	if err := s.sender.Send(ctx, notify.Phone, notify.Body); err != nil {
		outcome.NotifyErr = err
		s.logger.Warn("notification delivery failed",
			"quiz_set_id", notify.QuizSetID,
			"error", err)
		s.markStatus(ctx, notify.ID, false)
		return
	}

	outcome.Notified = true
	s.markStatus(ctx, notify.ID, true)
}

func (s *Service) markStatus(ctx context.Context, id int64, sent bool) {
	if s.statuses == nil || id == 0 {
		return
	}

	var err error
	if sent {
		err = s.statuses.MarkSent(ctx, id, time.Now())
	} else {
		err = s.statuses.MarkFailed(ctx, id)
	}
	if err != nil {
		s.logger.Warn("failed to update notification status",
			"notification_id", id,
			"error", err)
	}
}
