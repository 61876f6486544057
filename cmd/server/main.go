package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/auth"
	"github.com/stemsi/exstem-proctor/internal/client"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/incident"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		boot := newBootLogger(os.Stderr)
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("api_url", cfg.APIURL).
		Int("grace_seconds", cfg.Policy.GracePeriodSeconds).
		Int("max_violations", cfg.Policy.MaxViolations).
		Bool("fullscreen_critical", cfg.Policy.FullscreenCritical).
		Msg("Starting ExStem Proctor agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to Redis (optional incident journal) ──────────────────
	var (
		rdb       *redis.Client
		incidents session.IncidentRecorder
	)
	rdb, err = database.NewRedisClient(ctx, cfg, log)
	switch {
	case errors.Is(err, database.ErrRedisDisabled):
		log.Warn().Msg("REDIS_URL not set, incidents are not journaled")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	default:
		defer rdb.Close()
		incidents = incident.NewPublisher(rdb, log)
	}

	// ─── Quiz API Client ───────────────────────────────────────────────
	tokens := auth.Chain{auth.Static(cfg.Token), auth.File(cfg.TokenFile)}
	api := client.New(cfg.APIURL, cfg.APITimeout, tokens, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	registry := session.NewRegistry()
	handlers := &router.Handlers{
		WS:      handler.NewWSHandler(api, incidents, registry, cfg.Policy, clock.Real{}, log, cfg.AllowedOrigins),
		Session: handler.NewSessionHandler(registry),
	}
	if rdb != nil {
		handlers.Monitor = handler.NewMonitorHandler(rdb, registry, log)
	}

	wsLimiter := middleware.NewRateLimiter(cfg.WSConnectsPerMinute, time.Minute)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, wsLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				wsLimiter.Cleanup()
			}
		}
	})

	// ─── Start Incident Sink ──────────────────────────────────────────
	if cfg.DatabaseURL != "" {
		if rdb == nil {
			log.Warn().Msg("DATABASE_URL set without REDIS_URL, incident sink disabled")
		} else {
			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
			}
			defer pool.Close()

			sink := worker.NewIncidentWorker(pool, rdb, log)
			g.Go(func() error {
				sink.Start(gctx)
				return nil
			})
		}
	}

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("live_sessions", registry.Len()).Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Agent stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// newBootLogger logs failures that happen before the configured logger exists.
func newBootLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", "boot").Logger()
}
