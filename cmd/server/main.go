// Package main is the entrypoint for the MedSignal API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medsignal/medsignal/internal/ai"
	"github.com/medsignal/medsignal/internal/analysis"
	"github.com/medsignal/medsignal/internal/api"
	"github.com/medsignal/medsignal/internal/api/handler"
	mw "github.com/medsignal/medsignal/internal/api/middleware"
	"github.com/medsignal/medsignal/internal/api/response"
	"github.com/medsignal/medsignal/internal/cache"
	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/internal/correlation"
	"github.com/medsignal/medsignal/internal/embedding"
	"github.com/medsignal/medsignal/internal/pharmacovigilance"
	"github.com/medsignal/medsignal/internal/situations"
	"github.com/medsignal/medsignal/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Create store, embedder, and semantic cache
	pgStore := store.NewPostgresStore(pool)
	embedder := embedding.NewService(cfg.Embedding)
	semanticCache := situations.NewCache(pgStore, cfg.Embedding.Dimension, cfg.Analysis)

	// 7. Pharmacovigilance: openFDA backed by the curated knowledge table
	pvSource := pharmacovigilance.NewFallbackSource(
		pharmacovigilance.NewHTTPClient(cfg.OpenFDA.BaseURL, cfg.OpenFDA.APIKey, cfg.OpenFDA.Timeout),
		pharmacovigilance.NewStaticSource(),
	)
	slog.Info("pharmacovigilance source initialized", "source", pvSource.Name())

	// 8. Correlation engines
	engines := []analysis.Engine{
		correlation.NewDrugSymptomEngine(pvSource, aiProvider, cfg.Analysis),
		correlation.NewLabSymptomEngine(aiProvider, cfg.Analysis),
		correlation.NewDrugLabEngine(aiProvider, cfg.Analysis),
		correlation.NewTemporalEngine(),
	}

	// 9. Analysis service
	svc := analysis.NewService(pgStore, redisCache, embedder, semanticCache, aiProvider, engines, cfg.AI)

	// 10. Background janitor for stale cached situations
	go runJanitor(ctx, semanticCache, cfg.Analysis)

	// 11. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:        healthHandler(pgStore, redisCache, aiProvider.Name()),
		EventHandler:         handler.NewEventHandler(svc),
		PollJobHandler:       handler.NewPollJobHandler(pgStore),
		ComprehensiveHandler: handler.NewComprehensiveHandler(svc),
		ListNotifications:    handler.NewListNotificationsHandler(pgStore),
		MarkNotificationRead: handler.NewMarkNotificationReadHandler(pgStore),
		DismissNotification:  handler.NewDismissNotificationHandler(pgStore),
		CreateKeyHandler:     handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:      handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 12. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runJanitor periodically evicts rarely used cached situations.
func runJanitor(ctx context.Context, semanticCache *situations.Cache, cfg config.AnalysisConfig) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := semanticCache.Cleanup(ctx, cfg.CleanupAfterDays)
			if err != nil {
				slog.Warn("situation cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("stale situations evicted", "count", deleted)
			}
		}
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache, providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":      "ok",
			"ai_provider": providerName,
			"services":    checks,
		})
	}
}
