package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/database"
	"github.com/stemsi/exstem-client/internal/handler"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/repository"
	"github.com/stemsi/exstem-client/internal/router"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/validator"
	"github.com/stemsi/exstem-client/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("tab_id", cfg.TabID).
		Msg("Starting ExStem exam client")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Backend Client ────────────────────────────────────────────────
	checkBackendToken(cfg.BackendToken, log)
	backend := client.NewHTTPBackend(cfg.BackendURL, cfg.BackendToken, &http.Client{Timeout: cfg.BackendTimeout})

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionStore := repository.NewSessionStore(rdb, cfg.TabID, cfg.SessionTTL)
	resultStore := repository.NewResultStore(rdb, cfg.TabID, cfg.ResultTTL)
	viewCache := repository.NewViewCacheRepository(rdb, cfg.TabID)

	// ─── Initialize Workers & Services ─────────────────────────────────
	answerSync := worker.NewAnswerSyncWorker(backend, cfg.AnswerSyncQueueSize, log)
	notifier := service.NewRedisNotifier(rdb, cfg.TabID, log)

	sessionService := service.NewExamSessionService(
		sessionStore,
		resultStore,
		viewCache,
		backend,
		answerSync,
		notifier,
		service.ServiceOptions{
			TickInterval:           cfg.TickInterval,
			SubmitTimeout:          cfg.BackendTimeout * 2,
			SummaryTimeout:         cfg.BackendTimeout,
			AllowRetryAfterTimeout: cfg.AllowRetryAfterTimeout,
		},
		log,
	)

	// ─── Setup Router ──────────────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewExamSessionHandler(sessionService, log),
		Monitor: handler.NewMonitorHandler(rdb, cfg.TabID, sessionService, log),
		WS:      handler.NewWSHandler(rdb, cfg.TabID, sessionService, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run ───────────────────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		answerSync.Start(workerCtx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// 1. Stop accepting new HTTP requests (5s timeout).
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		// 2. Stop running timers so nothing submits against a closing process.
		sessionService.Shutdown()

		// 3. Stop the answer sync worker; it drains its queue before returning.
		workerCancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// checkBackendToken warns about a missing or expired backend credential.
// The backend stays the authority; the engine still starts either way.
func checkBackendToken(token string, log zerolog.Logger) {
	if token == "" {
		log.Warn().Msg("BACKEND_TOKEN is empty, backend calls are unauthenticated")
		return
	}

	info, err := client.InspectToken(token)
	if err != nil {
		log.Warn().Err(err).Msg("BACKEND_TOKEN is not a readable JWT")
		return
	}

	evt := log.Info().Str("subject", info.Subject)
	if info.ExpiresAt != nil {
		if info.Expired(time.Now()) {
			log.Warn().Time("expired_at", *info.ExpiresAt).Msg("BACKEND_TOKEN has expired")
			return
		}
		evt = evt.Time("expires_at", *info.ExpiresAt)
	}
	evt.Msg("Backend token loaded")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
