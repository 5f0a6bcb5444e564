package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CronExpression represents a parsed cron expression.
// Supports standard 5-field format: minute hour day-of-month month day-of-week
// Examples:
//   - "1 0 * * *"   - every day at 00:01
//   - "*/5 * * * *" - every 5 minutes
//   - "0 0 * * 0"   - every Sunday at midnight
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// ParseCronExpression parses a cron expression string.
// Format: minute hour day-of-month month day-of-week
// Supports: *, */n, n, n-m, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	var err error

	ce.minutes, err = parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}

	ce.hours, err = parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}

	ce.days, err = parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid day field: %w", err)
	}

	ce.months, err = parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}

	ce.weekdays, err = parseField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("invalid weekday field: %w", err)
	}

	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseField parses a single cron field.
func parseField(field string, min, max int) ([]int, error) {
	var result []int

	if field == "*" {
		for i := min; i <= max; i++ {
			result = append(result, i)
		}
		return result, nil
	}

	// Step values (*/n or n-m/s)
	if strings.Contains(field, "/") {
		parts := strings.Split(field, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid step format: %s", field)
		}

		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", parts[1])
		}

		var start, end int
		if parts[0] == "*" {
			start, end = min, max
		} else if strings.Contains(parts[0], "-") {
			rangeParts := strings.Split(parts[0], "-")
			start, _ = strconv.Atoi(rangeParts[0])
			end, _ = strconv.Atoi(rangeParts[1])
		} else {
			start, _ = strconv.Atoi(parts[0])
			end = max
		}

		for i := start; i <= end; i += step {
			if i >= min && i <= max {
				result = append(result, i)
			}
		}
		return result, nil
	}

	// Ranges (n-m)
	if strings.Contains(field, "-") {
		parts := strings.Split(field, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", field)
		}

		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", parts[0])
		}

		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", parts[1])
		}

		for i := start; i <= end; i++ {
			if i >= min && i <= max {
				result = append(result, i)
			}
		}
		return result, nil
	}

	// Lists (n,m,o)
	if strings.Contains(field, ",") {
		parts := strings.Split(field, ",")
		for _, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid list value: %s", p)
			}
			if v >= min && v <= max {
				result = append(result, v)
			}
		}
		sort.Ints(result)
		return result, nil
	}

	// Single value
	v, err := strconv.Atoi(field)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", field)
	}
	if v < min || v > max {
		return nil, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return []int{v}, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next calculates the next time the expression matches after the given time.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)

	// One year of minutes bounds the scan.
	const maxIterations = 366 * 24 * 60

	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

// matches checks if the given time matches the cron expression.
func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// CronJob is a registered job with its schedule and run state.
type CronJob struct {
	Name       string
	Expression *CronExpression
	Job        Job
	LastRun    time.Time
	NextRun    time.Time
	RunCount   int64
	SkipCount  int64
	Enabled    bool
	InFlight   bool
}

// CronScheduler manages cron-based job scheduling with single-flight runs.
type CronScheduler struct {
	jobs     map[string]*CronJob
	mu       sync.RWMutex
	logger   *slog.Logger
	location *time.Location
	metrics  *Metrics
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// CronOption configures the CronScheduler.
type CronOption func(*CronScheduler)

// WithLocation sets the timezone for cron expressions.
func WithLocation(loc *time.Location) CronOption {
	return func(cs *CronScheduler) {
		cs.location = loc
	}
}

// WithCronLogger sets the logger for the cron scheduler.
func WithCronLogger(logger *slog.Logger) CronOption {
	return func(cs *CronScheduler) {
		cs.logger = logger
	}
}

// NewCronScheduler creates a new cron-based scheduler.
func NewCronScheduler(opts ...CronOption) *CronScheduler {
	cs := &CronScheduler{
		jobs:     make(map[string]*CronJob),
		logger:   slog.Default(),
		location: time.Local,
		metrics:  NewMetrics(),
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cs)
	}

	return cs
}

// AddJob registers a job under a cron expression.
func (cs *CronScheduler) AddJob(name string, cronExpr string, job Job) error {
	expr, err := ParseCronExpression(cronExpr)
	if err != nil {
		return fmt.Errorf("failed to parse cron expression: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := time.Now().In(cs.location)
	cs.jobs[name] = &CronJob{
		Name:       name,
		Expression: expr,
		Job:        job,
		NextRun:    expr.Next(now),
		Enabled:    true,
	}

	cs.logger.Info("cron job added",
		"job", name,
		"expression", cronExpr,
		"next_run", cs.jobs[name].NextRun.Format(time.RFC3339),
	)

	return nil
}

// RemoveJob removes a job by name.
func (cs *CronScheduler) RemoveJob(name string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.jobs, name)
	cs.logger.Info("cron job removed", "job", name)
}

// EnableJob enables a job.
func (cs *CronScheduler) EnableJob(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	job, exists := cs.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	job.Enabled = true
	job.NextRun = job.Expression.Next(time.Now().In(cs.location))
	return nil
}

// DisableJob disables a job.
func (cs *CronScheduler) DisableJob(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	job, exists := cs.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	job.Enabled = false
	return nil
}

// GetJobStatus returns a copy of a job's state.
func (cs *CronScheduler) GetJobStatus(name string) (*CronJob, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	job, exists := cs.jobs[name]
	if !exists {
		return nil, false
	}

	jobCopy := *job
	return &jobCopy, true
}

// ListJobs returns all registered jobs, ordered by next run time.
func (cs *CronScheduler) ListJobs() []*CronJob {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	jobs := make([]*CronJob, 0, len(cs.jobs))
	for _, job := range cs.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].NextRun.Before(jobs[j].NextRun)
	})

	return jobs
}

// Metrics returns the scheduler's execution counters.
func (cs *CronScheduler) Metrics() *Metrics {
	return cs.metrics
}

// Start begins the scheduler loop.
func (cs *CronScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	cs.running = true
	cs.stopCh = make(chan struct{})
	cs.mu.Unlock()

	cs.logger.Info("cron scheduler started", "timezone", cs.location.String())

	cs.wg.Add(1)
	go cs.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight jobs.
func (cs *CronScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	close(cs.stopCh)
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.logger.Info("cron scheduler stopped")
}

// run is the main scheduler loop, ticking at the start of each minute.
func (cs *CronScheduler) run(ctx context.Context) {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.timeUntilNextMinute())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("cron scheduler context cancelled")
			return

		case <-cs.stopCh:
			return

		case <-ticker.C:
			ticker.Reset(cs.timeUntilNextMinute())
			cs.checkAndRunJobs(ctx)
		}
	}
}

// timeUntilNextMinute returns the duration until the start of the next minute.
func (cs *CronScheduler) timeUntilNextMinute() time.Duration {
	now := time.Now().In(cs.location)
	nextMinute := now.Truncate(time.Minute).Add(time.Minute)
	return time.Until(nextMinute)
}

// checkAndRunJobs starts each due job, skipping any still in flight.
func (cs *CronScheduler) checkAndRunJobs(ctx context.Context) {
	now := time.Now().In(cs.location)

	cs.mu.Lock()
	var dueJobs []*CronJob
	for _, job := range cs.jobs {
		if !job.Enabled || job.NextRun.After(now) {
			continue
		}
		if job.InFlight {
			job.SkipCount++
			job.NextRun = job.Expression.Next(now)
			cs.metrics.RecordSkip(job.Name)
			cs.logger.Warn("skipping run, previous still in flight",
				"job", job.Name,
				"next_run", job.NextRun.Format(time.RFC3339),
			)
			continue
		}
		job.InFlight = true
		job.LastRun = now
		job.NextRun = job.Expression.Next(now)
		job.RunCount++
		dueJobs = append(dueJobs, job)
	}
	cs.mu.Unlock()

	for _, job := range dueJobs {
		cs.launchJob(ctx, job)
	}
}

// launchJob executes a job in its own goroutine and records the result.
func (cs *CronScheduler) launchJob(ctx context.Context, job *CronJob) {
	cs.logger.Info("running cron job",
		"job", job.Name,
		"run_count", job.RunCount,
	)

	cs.wg.Add(1)
	go func(j *CronJob) {
		defer cs.wg.Done()
		defer func() {
			cs.mu.Lock()
			j.InFlight = false
			cs.mu.Unlock()
		}()

		startTime := time.Now()
		err := j.Job.Run(ctx)
		duration := time.Since(startTime)

		cs.metrics.RecordExecution(j.Name, duration, err == nil)

		if err != nil {
			cs.logger.Error("cron job failed",
				"job", j.Name,
				"duration", duration,
				"error", err,
			)
		} else {
			cs.logger.Info("cron job completed",
				"job", j.Name,
				"duration", duration,
			)
		}
	}(job)
}

// RunNow immediately executes a job by name, ignoring its schedule.
// Respects single flight: an in-flight job returns ErrJobRunning.
func (cs *CronScheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	cs.mu.Lock()
	job, exists := cs.jobs[name]
	if !exists {
		cs.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if job.InFlight {
		cs.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	job.InFlight = true
	job.RunCount++
	cs.mu.Unlock()

	defer func() {
		cs.mu.Lock()
		job.InFlight = false
		cs.mu.Unlock()
	}()

	startedAt := time.Now()
	cs.logger.Info("manual job execution started", "job", name)

	err := job.Job.Run(ctx)
	completedAt := time.Now()
	duration := completedAt.Sub(startedAt)

	cs.metrics.RecordExecution(name, duration, err == nil)

	result := &JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    duration,
		Success:     err == nil,
		Error:       err,
	}

	if err != nil {
		cs.logger.Error("manual job execution failed",
			"job", name,
			"duration", duration.String(),
			"error", err,
		)
	} else {
		cs.logger.Info("manual job execution completed",
			"job", name,
			"duration", duration.String(),
		)
	}

	return result, err
}

// DailyQuizExpression is the production schedule: one minute past
// midnight, every day.
const DailyQuizExpression = "1 0 * * *"
