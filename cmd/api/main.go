// Package main is the entry point for the HTTP API.
//
// The API exposes POST /generate_quiz for on-demand quiz creation plus
// health endpoints for deployment probes.
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
	httpiface "github.com/kidsbank/quizhub/internal/interface/http"
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
	log.Info("starting quizhub API",
		"env", cfg.App.Environment,
		"address", fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
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

	// Repositories
	quizRepo := postgres.NewQuizRepository(dbConn)
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
	}

	service := generate.NewService(quizRepo, familyRepo, generator, sender, notificationRepo, cfg.App.Location, log)

	// HTTP server
	serverCfg := httpiface.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout

	server := httpiface.NewServer(serverCfg, httpiface.Dependencies{
		Generator:     service,
		HealthChecker: dbConn,
		Logger:        log,
	})

	errCh := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

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
