// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/articleservice"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("corpus_path", cfg.Corpus.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure corpus directory exists.
	if err := os.MkdirAll(cfg.Corpus.Path, 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Corpus.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, cfg.Corpus.Separator, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Build article service and router.
	svc := articleservice.NewService(store, db, cfg.Corpus.Separator)
	apiRouter := api.NewRouter(svc, api.AuthOptions{
		Mode:      cfg.Auth.Mode,
		Token:     cfg.Auth.Token,
		JWTSecret: cfg.Auth.JWTSecret,
	}, broker, cfg.Corpus.Path)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Public asset serving.
	assets := api.NewAssetHandler(cfg.Corpus.Path)
	r.Get("/assets/{filename}", assets.ServeFile)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		index.Watch(gCtx, db, store, cfg.Corpus.Path, cfg.Corpus.Separator, logger, func(kind, path string) {
			broker.PublishArticleEvent(kind, path)
		})
		return nil
	})

	// Scheduled full resync catches anything the watcher missed
	// (network mounts, editors that bypass inotify).
	var scheduler *cron.Cron
	if cfg.Corpus.ResyncSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Corpus.ResyncSchedule, func() {
			if err := index.Sync(db, store, cfg.Corpus.Separator, logger); err != nil {
				logger.Warn("scheduled resync failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid resync schedule %q: %w", cfg.Corpus.ResyncSchedule, err)
		}
		scheduler.Start()
		logger.Info("resync scheduler started", slog.String("schedule", cfg.Corpus.ResyncSchedule))
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
