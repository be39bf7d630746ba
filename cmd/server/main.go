// Package main is the entrypoint for the ClipMiner API server.
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

	"github.com/kiranshivaraju/clipminer/internal/acquire"
	"github.com/kiranshivaraju/clipminer/internal/analyze"
	"github.com/kiranshivaraju/clipminer/internal/api"
	"github.com/kiranshivaraju/clipminer/internal/api/handler"
	mw "github.com/kiranshivaraju/clipminer/internal/api/middleware"
	"github.com/kiranshivaraju/clipminer/internal/api/response"
	"github.com/kiranshivaraju/clipminer/internal/cache"
	"github.com/kiranshivaraju/clipminer/internal/checkpoint"
	"github.com/kiranshivaraju/clipminer/internal/chunk"
	"github.com/kiranshivaraju/clipminer/internal/classify"
	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/internal/extract"
	"github.com/kiranshivaraju/clipminer/internal/media"
	"github.com/kiranshivaraju/clipminer/internal/pipeline"
	"github.com/kiranshivaraju/clipminer/internal/progress"
	"github.com/kiranshivaraju/clipminer/internal/publish"
	"github.com/kiranshivaraju/clipminer/internal/storage"
	"github.com/kiranshivaraju/clipminer/internal/store"
	"github.com/kiranshivaraju/clipminer/internal/transcribe"
)

const (
	shutdownTimeout = 30 * time.Second
	// In-flight jobs get this long to reach a checkpoint before the
	// process exits; anything still queued is recovered on the next boot.
	drainTimeout = 60 * time.Second
)

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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"transcriber", cfg.Transcriber.Provider,
		"classifier", cfg.Classifier.Provider,
		"workers", cfg.Pipeline.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	db, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
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

	// 5. Create object storage client
	s3, err := storage.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	slog.Info("storage client initialized", "bucket", cfg.Storage.Bucket)

	// 6. Create transcription and classification providers
	transcriber, err := transcribe.NewTranscriber(cfg.Transcriber)
	if err != nil {
		return fmt.Errorf("create transcriber: %w", err)
	}
	classifier, err := classify.NewClassifier(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}

	// 7. Create store
	pgStore := store.NewPostgresStore(db)

	// 8. Assemble the pipeline
	exec := media.NewCommandExecutor()
	tools := media.NewTools(cfg.Media, exec)
	hub := progress.NewHub(cfg.Pipeline.HeartbeatInterval)

	runner := pipeline.NewRunner(pipeline.Deps{
		Store:       pgStore,
		Cache:       redisCache,
		Hub:         hub,
		Checkpoints: checkpoint.NewStore(cfg.Pipeline.CheckpointDir),
		Acquirer:    acquire.New(cfg.Media, exec, tools, s3),
		Audio:       tools,
		Splitter:    chunk.New(tools, cfg.Pipeline),
		Analyzer:    analyze.New(transcriber, classifier),
		Extractor:   extract.New(tools),
		Publisher:   publish.New(s3, cfg.Storage.KeyPrefix, cfg.Pipeline.KeepIntermediates),
		WorkDir:     cfg.Media.WorkDir,
	})
	pool := pipeline.NewPool(runner, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize)

	// 9. Requeue jobs a previous process left unfinished, then start workers
	if _, err := pipeline.Recover(ctx, pgStore, pool); err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	pool.Start(ctx)

	// 10. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:    healthHandler(pgStore, redisCache),
		SubmitJobHandler: handler.NewSubmitJobHandler(pgStore, pool, cfg.Pipeline.ChunkDurationSecs),
		ListJobsHandler:  handler.NewListJobsHandler(pgStore),
		GetJobHandler:    handler.NewGetJobHandler(pgStore, redisCache),
		JobEventsHandler: handler.NewJobEventsHandler(pgStore, hub),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 11. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the events endpoint holds a response open for
		// the life of a job.
		WriteTimeout: 0,
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

	// Graceful shutdown: stop accepting requests, then let in-flight jobs
	// settle so their state lands in the store before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := pool.Drain(drainTimeout); err != nil {
		slog.Warn("pipeline drain incomplete, unfinished jobs recover on next boot", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
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
			"status":   "ok",
			"services": checks,
		})
	}
}
