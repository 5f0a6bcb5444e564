package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"daily quiz schedule", "1 0 * * *", false},
		{"every minute", "* * * * *", false},
		{"every 5 minutes", "*/5 * * * *", false},
		{"range", "0-30 9 * * 1-5", false},
		{"list", "0,15,30,45 * * * *", false},
		{"too few fields", "1 0 * *", true},
		{"too many fields", "1 0 * * * *", true},
		{"minute out of range", "60 0 * * *", true},
		{"hour out of range", "0 24 * * *", true},
		{"garbage", "a b c d e", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpressionNext(t *testing.T) {
	expr := MustParseCronExpression(DailyQuizExpression)

	t.Run("before the slot on the same day", func(t *testing.T) {
		after := time.Date(2026, 3, 10, 0, 0, 30, 0, time.UTC)
		next := expr.Next(after)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC), next)
	})

	t.Run("after the slot rolls to next day", func(t *testing.T) {
		after := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)
		next := expr.Next(after)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC), next)
	})

	t.Run("mid-day rolls to next midnight", func(t *testing.T) {
		after := time.Date(2026, 3, 10, 15, 42, 0, 0, time.UTC)
		next := expr.Next(after)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC), next)
	})
}

type countingJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestRunNow(t *testing.T) {
	t.Run("executes and records", func(t *testing.T) {
		cs := NewCronScheduler()
		job := &countingJob{name: "daily-quizzes"}
		require.NoError(t, cs.AddJob(job.Name(), DailyQuizExpression, job))

		result, err := cs.RunNow(context.Background(), "daily-quizzes")
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, int32(1), job.runs.Load())
		assert.Equal(t, int64(1), cs.Metrics().Snapshot().TotalExecutions)
	})

	t.Run("unknown job", func(t *testing.T) {
		cs := NewCronScheduler()
		_, err := cs.RunNow(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("in-flight job is not started twice", func(t *testing.T) {
		cs := NewCronScheduler()
		job := &countingJob{name: "daily-quizzes", block: make(chan struct{})}
		require.NoError(t, cs.AddJob(job.Name(), DailyQuizExpression, job))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = cs.RunNow(context.Background(), "daily-quizzes")
		}()

		// Wait until the first run is in flight.
		require.Eventually(t, func() bool {
			status, ok := cs.GetJobStatus("daily-quizzes")
			return ok && status.InFlight
		}, time.Second, 5*time.Millisecond)

		_, err := cs.RunNow(context.Background(), "daily-quizzes")
		assert.ErrorIs(t, err, ErrJobRunning)

		close(job.block)
		<-done
		assert.Equal(t, int32(1), job.runs.Load())
	})
}

func TestJobRegistration(t *testing.T) {
	cs := NewCronScheduler()
	job := &countingJob{name: "daily-quizzes"}

	require.NoError(t, cs.AddJob(job.Name(), DailyQuizExpression, job))

	t.Run("bad expression rejected", func(t *testing.T) {
		err := cs.AddJob("broken", "not a cron", job)
		assert.Error(t, err)
	})

	t.Run("status and listing", func(t *testing.T) {
		status, ok := cs.GetJobStatus("daily-quizzes")
		require.True(t, ok)
		assert.True(t, status.Enabled)
		assert.False(t, status.NextRun.IsZero())

		jobs := cs.ListJobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, "daily-quizzes", jobs[0].Name)
	})

	t.Run("disable and enable", func(t *testing.T) {
		require.NoError(t, cs.DisableJob("daily-quizzes"))
		status, _ := cs.GetJobStatus("daily-quizzes")
		assert.False(t, status.Enabled)

		require.NoError(t, cs.EnableJob("daily-quizzes"))
		status, _ = cs.GetJobStatus("daily-quizzes")
		assert.True(t, status.Enabled)
	})
}
