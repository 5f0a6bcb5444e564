package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kidsbank/quizhub/internal/domain/notification"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
	"github.com/kidsbank/quizhub/pkg/timeutil"
)

// QuizRepository persists quiz sets and their notifications.
// Balances are stored as NUMERIC(12,2) reais; all comparisons happen on
// integer cents via (balance*100)::bigint so no float math touches money.
type QuizRepository struct {
	conn *Connection
}

// NewQuizRepository creates a new quiz repository.
func NewQuizRepository(conn *Connection) *QuizRepository {
	return &QuizRepository{conn: conn}
}

const lockParentBalanceSQL = `
	SELECT (balance * 100)::bigint
	FROM parent_accounts
	WHERE id = $1
	FOR UPDATE`

const insertQuizSetSQL = `
	INSERT INTO quiz_sets (parent_id, child_id, questions, reward, status, automatic, created_at, created_on)
	VALUES ($1, $2, $3, $4::bigint::numeric / 100, $5, $6, $7, $8)
	RETURNING id, created_at`

const insertNotificationSQL = `
	INSERT INTO notifications (quiz_set_id, child_id, parent_id, phone, kind, body, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

// CreateSet creates a quiz set in a single transaction: the parent row is
// locked, the balance is checked against the reward, the set is inserted,
// and the pending notification (if any) is recorded. The partial unique
// index on (child_id, created_on) turns duplicate automatic inserts into
// shared.ErrSetExistsToday; manual sets are never subject to it.
func (r *QuizRepository) CreateSet(ctx context.Context, set *quiz.NewSet, day time.Time, notify *notification.Notification) (*quiz.Set, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	questionsJSON, err := json.Marshal(set.Questions)
	if err != nil {
		return nil, shared.WrapError("quiz", "Create", shared.ErrInvalidEntity, "failed to encode questions", err)
	}

	createdOn := timeutil.DayOf(day)
	now := timeutil.Now()

	created := &quiz.Set{
		ParentID:  set.ParentID,
		ChildID:   set.ChildID,
		Questions: set.Questions,
		Reward:    set.Reward,
		Status:    quiz.StatusPending,
		Automatic: set.Automatic,
		CreatedOn: createdOn,
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var balance shared.Cents
		if err := tx.QueryRow(ctx, lockParentBalanceSQL, set.ParentID).Scan(&balance); err != nil {
			if IsNoRows(err) {
				return shared.ErrParentNotFound
			}
			return shared.WrapError("quiz", "Create", shared.ErrPersistence, "failed to lock parent balance", err)
		}

		if !balance.Covers(set.Reward) {
			return shared.ErrInsufficientBalance
		}

		err := tx.QueryRow(ctx, insertQuizSetSQL,
			set.ParentID,
			set.ChildID,
			questionsJSON,
			int64(set.Reward),
			string(quiz.StatusPending),
			set.Automatic,
			now,
			createdOn,
		).Scan(&created.ID, &created.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrSetExistsToday
			}
			return shared.WrapError("quiz", "Create", shared.ErrPersistence, "failed to insert quiz set", err)
		}

		if notify != nil {
			notify.QuizSetID = created.ID
			notify.ChildID = set.ChildID
			if notify.CreatedAt.IsZero() {
				notify.CreatedAt = now
			}
			if err := notify.Validate(); err != nil {
				return err
			}
			err := tx.QueryRow(ctx, insertNotificationSQL,
				notify.QuizSetID,
				notify.ChildID,
				notify.ParentID,
				notify.Phone,
				string(notify.Kind),
				notify.Body,
				string(notification.StatusPending),
				notify.CreatedAt,
			).Scan(&notify.ID)
			if err != nil {
				return shared.WrapError("quiz", "Create", shared.ErrPersistence, "failed to record notification", err)
			}
			notify.Status = notification.StatusPending
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

const existsAutomaticSQL = `
	SELECT EXISTS (
		SELECT 1 FROM quiz_sets
		WHERE child_id = $1 AND created_on = $2 AND automatic
	)`

// ExistsAutomaticToday reports whether the child already has an automatic
// set on the given day. Advisory pre-check; the unique index decides.
func (r *QuizRepository) ExistsAutomaticToday(ctx context.Context, childID int64, day time.Time) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, existsAutomaticSQL, childID, timeutil.DayOf(day)).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("quiz", "Exists", shared.ErrPersistence, "failed to check existing quiz set", err)
	}
	return exists, nil
}

const getSetSQL = `
	SELECT id, parent_id, child_id, questions, (reward * 100)::bigint, status, automatic, created_at, created_on
	FROM quiz_sets
	WHERE id = $1`

// GetSet loads a quiz set by ID.
func (r *QuizRepository) GetSet(ctx context.Context, id int64) (*quiz.Set, error) {
	var (
		s             quiz.Set
		questionsJSON []byte
		status        string
	)
	err := r.conn.QueryRow(ctx, getSetSQL, id).Scan(
		&s.ID,
		&s.ParentID,
		&s.ChildID,
		&questionsJSON,
		&s.Reward,
		&status,
		&s.Automatic,
		&s.CreatedAt,
		&s.CreatedOn,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("quiz", "Get", shared.ErrNotFound, fmt.Sprintf("quiz set %d not found", id), nil)
		}
		return nil, shared.WrapError("quiz", "Get", shared.ErrInvalidState, "failed to load quiz set", err)
	}

	if err := json.Unmarshal(questionsJSON, &s.Questions); err != nil {
		return nil, shared.WrapError("quiz", "Get", shared.ErrInvalidFormat, "failed to decode questions", err)
	}
	parsed, err := quiz.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = parsed

	return &s, nil
}

// NotificationRepository updates delivery state for recorded notifications.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// MarkSent records successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE notifications SET status = $1, sent_at = $2 WHERE id = $3`,
		string(notification.StatusSent), at, id)
	if err != nil {
		return shared.WrapError("notification", "MarkSent", shared.ErrInvalidState, "failed to update notification", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("notification", "MarkSent", shared.ErrNotFound, fmt.Sprintf("notification %d not found", id), nil)
	}
	return nil
}

// MarkFailed records a delivery failure.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE notifications SET status = $1 WHERE id = $2`,
		string(notification.StatusFailed), id)
	if err != nil {
		return shared.WrapError("notification", "MarkFailed", shared.ErrInvalidState, "failed to update notification", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("notification", "MarkFailed", shared.ErrNotFound, fmt.Sprintf("notification %d not found", id), nil)
	}
	return nil
}
