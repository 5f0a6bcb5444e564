// Package jobs contains the scheduled jobs of the quiz pipeline.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kidsbank/quizhub/internal/application/generate"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
	"github.com/kidsbank/quizhub/pkg/timeutil"
)

// ChildGenerator runs the generation pipeline for one scheduled config.
type ChildGenerator interface {
	GenerateForChild(ctx context.Context, sc quiz.ScheduledConfig) (*generate.Outcome, error)
}

// RunLocker is a cross-process mutex over a calendar day. Optional: with a
// single worker the database unique index already guarantees idempotency.
type RunLocker interface {
	Acquire(ctx context.Context, day string, token string) error
	Release(ctx context.Context, day string, token string) error
}

// DailyQuizConfig contains configuration for the daily quiz job.
type DailyQuizConfig struct {
	// Timezone for day boundaries. Defaults to São Paulo.
	Timezone *time.Location

	// Concurrency is the number of children processed in parallel.
	Concurrency int

	// Timeout is the maximum duration for the whole run.
	Timeout time.Duration

	// PerChildTimeout bounds a single child's pipeline, so one hung
	// generation call cannot eat the whole run budget.
	PerChildTimeout time.Duration
}

// DefaultDailyQuizConfig returns sensible defaults.
func DefaultDailyQuizConfig() DailyQuizConfig {
	return DailyQuizConfig{
		Timezone:        timeutil.SaoPauloTZ,
		Concurrency:     4,
		Timeout:         30 * time.Minute,
		PerChildTimeout: 3 * time.Minute,
	}
}

// DailyQuizStats contains statistics from one batch run.
type DailyQuizStats struct {
	RunID               string
	StartedAt           time.Time
	CompletedAt         time.Time
	Duration            time.Duration
	TotalConfigs        int
	Created             int
	Skipped             int
	InsufficientBalance int
	Failed              int
	Notified            int
	Errors              []error
}

// DailyQuizJob generates the daily quiz set for every due configuration.
// One child's failure never stops the batch; only a config-fetch failure
// is fatal to the run.
type DailyQuizJob struct {
	configs   quiz.ConfigSource
	generator ChildGenerator
	lock      RunLocker
	lockErr   error
	config    DailyQuizConfig
	logger    *slog.Logger

	lastRunStats atomic.Value // *DailyQuizStats
}

// NewDailyQuizJob creates the daily batch job. lock may be nil; lockHeld is
// the sentinel the locker returns when another process owns the day.
func NewDailyQuizJob(
	configs quiz.ConfigSource,
	generator ChildGenerator,
	lock RunLocker,
	lockHeld error,
	config DailyQuizConfig,
	logger *slog.Logger,
) *DailyQuizJob {
	if config.Timezone == nil {
		config.Timezone = timeutil.SaoPauloTZ
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DailyQuizJob{
		configs:   configs,
		generator: generator,
		lock:      lock,
		lockErr:   lockHeld,
		config:    config,
		logger:    logger.With("job", "daily_quizzes"),
	}
}

// Name returns the job name.
func (j *DailyQuizJob) Name() string {
	return "daily_quizzes"
}

// Description returns a human-readable description.
func (j *DailyQuizJob) Description() string {
	return "Generates the daily quiz set for every active daily configuration"
}

// Run executes one batch run.
func (j *DailyQuizJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DailyQuizStats{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
	}
	logger := j.logger.With("run_id", stats.RunID)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	day := timeutil.FormatDay(time.Now().In(j.config.Timezone))

	if j.lock != nil {
		if err := j.lock.Acquire(ctx, day, stats.RunID); err != nil {
			if j.lockErr != nil && errors.Is(err, j.lockErr) {
				logger.Info("another process owns today's run, skipping", "day", day)
				return nil
			}
			// A broken lock backend must not cancel the day: the unique
			// index still prevents duplicates.
			logger.Warn("run lock unavailable, continuing without it", "error", err)
		} else {
			defer func() {
				if err := j.lock.Release(context.WithoutCancel(ctx), day, stats.RunID); err != nil {
					logger.Warn("failed to release run lock", "error", err)
				}
			}()
		}
	}

	logger.Info("starting daily quiz run", "day", day)

	configs, err := j.configs.ListDueDaily(ctx)
	if err != nil {
		return fmt.Errorf("failed to list due configurations: %w", err)
	}

	stats.TotalConfigs = len(configs)
	logger.Info("resolved due configurations", "count", stats.TotalConfigs)

	if stats.TotalConfigs > 0 {
		j.processConcurrently(ctx, logger, configs, stats)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	logger.Info("daily quiz run completed",
		"duration", stats.Duration.String(),
		"total", stats.TotalConfigs,
		"created", stats.Created,
		"skipped", stats.Skipped,
		"insufficient_balance", stats.InsufficientBalance,
		"failed", stats.Failed,
		"notified", stats.Notified,
	)

	return nil
}

// processConcurrently runs the pipeline for each config on a worker pool.
func (j *DailyQuizJob) processConcurrently(
	ctx context.Context,
	logger *slog.Logger,
	configs []quiz.ScheduledConfig,
	stats *DailyQuizStats,
) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, sc := range configs {
		// Stop launching on cancellation, but fall through to wg.Wait:
		// in-flight workers must finish and be counted before Run
		// publishes the stats.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(sc quiz.ScheduledConfig) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome, err := j.processChild(ctx, sc)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil && outcome.Skipped:
				stats.Skipped++
			case err == nil:
				stats.Created++
				if outcome.Notified {
					stats.Notified++
				}
			case errors.Is(err, shared.ErrInsufficientBalance):
				stats.InsufficientBalance++
				logger.Warn("child skipped, insufficient balance",
					"child_id", sc.ChildID,
					"parent_id", sc.ParentID,
				)
			default:
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Errorf("child %d: %w", sc.ChildID, err))
				logger.Error("child run failed",
					"child_id", sc.ChildID,
					"error", err,
				)
			}
		}(sc)
	}

	wg.Wait()
}

func (j *DailyQuizJob) processChild(ctx context.Context, sc quiz.ScheduledConfig) (*generate.Outcome, error) {
	if j.config.PerChildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.PerChildTimeout)
		defer cancel()
	}
	return j.generator.GenerateForChild(ctx, sc)
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *DailyQuizJob) LastRunStats() *DailyQuizStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*DailyQuizStats)
	}
	return nil
}
