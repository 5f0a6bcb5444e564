// Package main is the entry point for the background worker.
//
// The worker runs the daily schedule: every night at 00:01 in the
// configured timezone it generates one quiz set for every active daily
// configuration and notifies the parent over WhatsApp.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kidsbank/quizhub/config"
	"github.com/kidsbank/quizhub/internal/application/generate"
	"github.com/kidsbank/quizhub/internal/domain/notification"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/infrastructure/external/gemini"
	"github.com/kidsbank/quizhub/internal/infrastructure/external/whatsapp"
	"github.com/kidsbank/quizhub/internal/infrastructure/persistence/postgres"
	"github.com/kidsbank/quizhub/internal/infrastructure/persistence/redis"
	"github.com/kidsbank/quizhub/internal/infrastructure/scheduler"
	"github.com/kidsbank/quizhub/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting quizhub worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"cron", cfg.Scheduler.DailyQuizCron,
	)

	// Database
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// Redis run lock (optional)
	var runLock jobs.RunLocker
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.DialTimeout = cfg.Redis.DialTimeout

		lock, err := redis.NewRunLock(ctx, redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, run lock disabled", "error", err)
		} else {
			defer lock.Close()
			runLock = lock
			log.Info("Redis connection established")
		}
	}

	// Repositories
	quizRepo := postgres.NewQuizRepository(dbConn)
	configRepo := postgres.NewConfigRepository(dbConn)
	familyRepo := postgres.NewFamilyRepository(dbConn)
	notificationRepo := postgres.NewNotificationRepository(dbConn)

	// Quiz generator
	var generator quiz.Generator
	if cfg.Gemini.UseMock {
		log.Warn("using mock quiz generator")
		generator = &gemini.MockGenerator{}
	} else {
		geminiCfg := gemini.DefaultConfig()
		geminiCfg.APIKey = cfg.Gemini.APIKey
		geminiCfg.Model = cfg.Gemini.Model
		geminiCfg.Timeout = cfg.Gemini.Timeout
		geminiCfg.Temperature = float32(cfg.Gemini.Temperature)

		client, err := gemini.NewClient(ctx, geminiCfg, log)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		generator = client
	}

	// WhatsApp sender
	var sender notification.Sender
	if cfg.WhatsApp.Enabled {
		waCfg := whatsapp.DefaultClientConfig(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID)
		waCfg.BaseURL = cfg.WhatsApp.BaseURL
		waCfg.APIVersion = cfg.WhatsApp.APIVersion
		waCfg.Timeout = cfg.WhatsApp.Timeout
		waCfg.Logger = log
		sender = whatsapp.NewClient(waCfg)
	} else {
		log.Warn("WhatsApp notifications are disabled")
	}

	// Application service and batch job
	service := generate.NewService(quizRepo, familyRepo, generator, sender, notificationRepo, cfg.App.Location, log)

	jobCfg := jobs.DefaultDailyQuizConfig()
	jobCfg.Timezone = cfg.App.Location
	jobCfg.Concurrency = cfg.Scheduler.Concurrency
	jobCfg.Timeout = cfg.Scheduler.JobTimeout
	jobCfg.PerChildTimeout = cfg.Scheduler.PerChildTimeout

	dailyJob := jobs.NewDailyQuizJob(configRepo, service, runLock, redis.ErrLockHeld, jobCfg, log)

	// Scheduler
	cron := scheduler.NewCronScheduler(
		scheduler.WithLocation(cfg.App.Location),
		scheduler.WithCronLogger(log),
	)
	if err := cron.AddJob(dailyJob.Name(), cfg.Scheduler.DailyQuizCron, dailyJob); err != nil {
		return fmt.Errorf("failed to register daily job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := cron.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer cron.Stop()
	} else {
		log.Warn("scheduler is disabled, worker will idle")
	}

	log.Info("quizhub worker is running", "timezone", cfg.App.Timezone)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed")
	return nil
}

// setupLogger configures structured logging for the process.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
