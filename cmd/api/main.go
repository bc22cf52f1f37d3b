// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Command api is the entry point for the Ace Job Agency member portal API.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire security services, external collaborators, and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acejobs/portal/internal/api"
	"github.com/acejobs/portal/internal/platform/blob"
	"github.com/acejobs/portal/internal/platform/captcha"
	"github.com/acejobs/portal/internal/platform/config"
	"github.com/acejobs/portal/internal/platform/constants"
	"github.com/acejobs/portal/internal/platform/mail"
	"github.com/acejobs/portal/internal/platform/migration"
	pgstore "github.com/acejobs/portal/internal/platform/postgres"
	redisstore "github.com/acejobs/portal/internal/platform/redis"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/users/audit"
	"github.com/acejobs/portal/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security & External Collaborators ──────────────────────────────
	ticketService, err := sec.NewTicketService(cfg.TicketPrivKeyPath, cfg.TicketPubKeyPath, constants.TicketIssuer)
	must(log, err, "initialize ticket service")

	fieldCipher, err := sec.NewFieldCipher(cfg.EncryptionKey)
	must(log, err, "initialize field cipher")

	captchaVerifier := captcha.NewGoogleVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret, cfg.CaptchaMinScore)
	mailSender := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailSender)

	blobStore, err := blob.NewDiskStore(cfg.UploadDir)
	must(log, err, "initialize blob store")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	auditStore := audit.NewPostgresStore(pool)
	activityRecorder := audit.NewRecorder(auditStore, log)
	defer activityRecorder.Close()

	memberRepository := auth.NewMemberRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	historyRepository := auth.NewPasswordHistoryRepository(pool)
	otpRepository := auth.NewOtpRepository(rdb)
	resetTokenRepository := auth.NewResetTokenRepository(rdb)

	authService := auth.NewService(
		memberRepository,
		sessionRepository,
		historyRepository,
		otpRepository,
		resetTokenRepository,
		ticketService,
		captchaVerifier,
		mailSender,
		fieldCipher,
		activityRecorder,
		cfg.ResetURLBase,
	)

	authHandler := auth.NewHandler(authService, blobStore)
	auditHandler := audit.NewHandler(auditStore)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Audit:     auditHandler,
	}

	server := api.NewServer(cfg, log, authService, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	log.Info("server shutting down")
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}
	log.Info("server stopped")
}

// must aborts startup with a structured log entry when a wiring step fails.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failed", slog.String("step", step), slog.Any("error", err))
		os.Exit(1)
	}
}
