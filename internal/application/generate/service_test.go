package generate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidsbank/quizhub/internal/domain/family"
	"github.com/kidsbank/quizhub/internal/domain/notification"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
)

type fakeRepo struct {
	existsToday bool
	existsErr   error
	createErr   error
	created     *quiz.NewSet
	notify      *notification.Notification
	day         time.Time
	nextID      int64
}

func (f *fakeRepo) CreateSet(_ context.Context, set *quiz.NewSet, day time.Time, notify *notification.Notification) (*quiz.Set, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = set
	f.notify = notify
	f.day = day
	f.nextID++
	if notify != nil {
		notify.ID = f.nextID * 100
		notify.QuizSetID = f.nextID
	}
	return &quiz.Set{
		ID:        f.nextID,
		ParentID:  set.ParentID,
		ChildID:   set.ChildID,
		Questions: set.Questions,
		Reward:    set.Reward,
		Status:    quiz.StatusPending,
		Automatic: set.Automatic,
		CreatedAt: day,
		CreatedOn: day,
	}, nil
}

func (f *fakeRepo) ExistsAutomaticToday(_ context.Context, _ int64, _ time.Time) (bool, error) {
	return f.existsToday, f.existsErr
}

func (f *fakeRepo) GetSet(_ context.Context, _ int64) (*quiz.Set, error) {
	return nil, shared.ErrNotFound
}

type fakeFamilies struct {
	child  *family.ChildProfile
	parent *family.ParentAccount
}

func (f *fakeFamilies) GetChild(_ context.Context, id int64) (*family.ChildProfile, error) {
	if f.child == nil || f.child.ID != id {
		return nil, shared.ErrChildNotFound
	}
	return f.child, nil
}

func (f *fakeFamilies) GetParent(_ context.Context, id int64) (*family.ParentAccount, error) {
	if f.parent == nil || f.parent.ID != id {
		return nil, shared.ErrParentNotFound
	}
	return f.parent, nil
}

type fakeGenerator struct {
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, cfg quiz.Config) ([]quiz.Question, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	questions := make([]quiz.Question, cfg.Quantity)
	for i := range questions {
		questions[i] = quiz.Question{
			Prompt:       "Pergunta",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 0,
			Explanation:  "Porque sim.",
		}
	}
	return questions, nil
}

type fakeSender struct {
	err   error
	sent  []string
	body  string
	calls int
}

func (f *fakeSender) Send(_ context.Context, phone, body string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone)
	f.body = body
	return nil
}

type fakeStore struct {
	sentIDs   []int64
	failedIDs []int64
}

func (f *fakeStore) MarkSent(_ context.Context, id int64, _ time.Time) error {
	f.sentIDs = append(f.sentIDs, id)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id int64) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

func scheduledConfig() quiz.ScheduledConfig {
	return quiz.ScheduledConfig{
		Config: quiz.Config{
			ID:       1,
			ChildID:  2,
			Subject:  "matemática",
			Age:      9,
			Level:    quiz.DifficultyMedium,
			Quantity: 5,
			Reward:   shared.Cents(300),
			Cadence:  quiz.CadenceDaily,
			Active:   true,
		},
		ParentID:              7,
		ParentPhone:           "5511999990000",
		WhatsAppNotifications: true,
	}
}

func TestGenerateForChild(t *testing.T) {
	t.Run("creates set and notifies", func(t *testing.T) {
		repo := &fakeRepo{}
		gen := &fakeGenerator{}
		sender := &fakeSender{}
		store := &fakeStore{}
		svc := NewService(repo, &fakeFamilies{}, gen, sender, store, nil, nil)

		outcome, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.NoError(t, err)

		require.NotNil(t, outcome.Set)
		assert.False(t, outcome.Skipped)
		assert.True(t, outcome.Notified)
		assert.Len(t, outcome.Set.Questions, 5)
		assert.True(t, outcome.Set.Automatic)
		assert.Equal(t, shared.Cents(300), outcome.Set.Reward)

		require.NotNil(t, repo.notify)
		assert.Equal(t, notification.KindAutomatic, repo.notify.Kind)
		assert.Equal(t, int64(2), repo.notify.ChildID)
		assert.Equal(t, []string{"5511999990000"}, sender.sent)
		assert.Equal(t, notification.MessageAutomatic, sender.body)
		assert.Equal(t, []int64{repo.notify.ID}, store.sentIDs)
	})

	t.Run("pre-check skip avoids generation", func(t *testing.T) {
		repo := &fakeRepo{existsToday: true}
		gen := &fakeGenerator{}
		svc := NewService(repo, &fakeFamilies{}, gen, &fakeSender{}, &fakeStore{}, nil, nil)

		outcome, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.NoError(t, err)

		assert.True(t, outcome.Skipped)
		assert.Nil(t, outcome.Set)
		assert.Zero(t, gen.calls, "generator must not run for an existing set")
	})

	t.Run("lost race is a skip, not an error", func(t *testing.T) {
		repo := &fakeRepo{createErr: shared.ErrSetExistsToday}
		sender := &fakeSender{}
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{}, sender, &fakeStore{}, nil, nil)

		outcome, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.NoError(t, err)

		assert.True(t, outcome.Skipped)
		assert.Zero(t, sender.calls)
	})

	t.Run("insufficient balance surfaces unchanged", func(t *testing.T) {
		repo := &fakeRepo{createErr: shared.ErrInsufficientBalance}
		sender := &fakeSender{}
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{}, sender, &fakeStore{}, nil, nil)

		_, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
		assert.Zero(t, sender.calls, "no notification without a quiz set")
	})

	t.Run("generation failure stops before persistence", func(t *testing.T) {
		repo := &fakeRepo{}
		genErr := shared.WrapError("quiz", "Generate", shared.ErrGeneration, "boom", nil)
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{err: genErr}, &fakeSender{}, &fakeStore{}, nil, nil)

		_, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrGeneration)
		assert.Nil(t, repo.created)
	})

	t.Run("notifier failure never fails the run", func(t *testing.T) {
		repo := &fakeRepo{}
		store := &fakeStore{}
		sendErr := shared.WrapError("notification", "Send", shared.ErrNotification, "down", nil)
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{}, &fakeSender{err: sendErr}, store, nil, nil)

		outcome, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.NoError(t, err)

		require.NotNil(t, outcome.Set)
		assert.False(t, outcome.Notified)
		assert.ErrorIs(t, outcome.NotifyErr, shared.ErrNotification)
		assert.Equal(t, []int64{repo.notify.ID}, store.failedIDs)
	})

	t.Run("notifications disabled skips delivery", func(t *testing.T) {
		repo := &fakeRepo{}
		sender := &fakeSender{}
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{}, sender, &fakeStore{}, nil, nil)

		sc := scheduledConfig()
		sc.WhatsAppNotifications = false

		outcome, err := svc.GenerateForChild(context.Background(), sc)
		require.NoError(t, err)

		assert.False(t, outcome.Notified)
		assert.Nil(t, repo.notify, "no notification row recorded")
		assert.Zero(t, sender.calls)
	})

	t.Run("day computed in the configured timezone", func(t *testing.T) {
		repo := &fakeRepo{}
		tokyo := time.FixedZone("Asia/Tokyo", 9*60*60)
		svc := NewService(repo, &fakeFamilies{}, &fakeGenerator{}, &fakeSender{}, &fakeStore{}, tokyo, nil)

		_, err := svc.GenerateForChild(context.Background(), scheduledConfig())
		require.NoError(t, err)
		assert.Equal(t, tokyo, repo.day.Location())
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &fakeFamilies{}, &fakeGenerator{}, &fakeSender{}, &fakeStore{}, nil, nil)

		sc := scheduledConfig()
		sc.Quantity = 0

		_, err := svc.GenerateForChild(context.Background(), sc)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestGenerateManual(t *testing.T) {
	families := &fakeFamilies{
		child:  &family.ChildProfile{ID: 2, ParentID: 7, Name: "Luna", Age: 9},
		parent: &family.ParentAccount{ID: 7, Name: "Ana", Phone: "5511999990000", Balance: shared.Cents(10_00)},
	}

	req := ManualRequest{
		ChildID:               2,
		Subject:               "ciências",
		Age:                   9,
		Level:                 quiz.DifficultyEasy,
		Quantity:              3,
		Reward:                shared.Cents(200),
		WhatsAppNotifications: true,
	}

	t.Run("creates manual set", func(t *testing.T) {
		repo := &fakeRepo{}
		sender := &fakeSender{}
		svc := NewService(repo, families, &fakeGenerator{}, sender, &fakeStore{}, nil, nil)

		outcome, err := svc.GenerateManual(context.Background(), req)
		require.NoError(t, err)

		require.NotNil(t, outcome.Set)
		assert.False(t, outcome.Set.Automatic)
		assert.Len(t, outcome.Set.Questions, 3)
		require.NotNil(t, repo.notify)
		assert.Equal(t, notification.KindManual, repo.notify.Kind)
		assert.Equal(t, int64(2), repo.notify.ChildID)
		assert.Equal(t, notification.MessageManual, sender.body)
	})

	t.Run("unknown child", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, families, &fakeGenerator{}, &fakeSender{}, &fakeStore{}, nil, nil)

		bad := req
		bad.ChildID = 99

		_, err := svc.GenerateManual(context.Background(), bad)
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("age defaults to profile", func(t *testing.T) {
		repo := &fakeRepo{}
		gen := &fakeGenerator{}
		svc := NewService(repo, families, gen, &fakeSender{}, &fakeStore{}, nil, nil)

		noAge := req
		noAge.Age = 0

		_, err := svc.GenerateManual(context.Background(), noAge)
		require.NoError(t, err)
	})
}
