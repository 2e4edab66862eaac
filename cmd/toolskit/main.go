package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"finitefield.org/toolskit/internal/calc"
	"finitefield.org/toolskit/internal/content"
	"finitefield.org/toolskit/internal/handlers"
	"finitefield.org/toolskit/internal/platform/config"
	"finitefield.org/toolskit/internal/platform/observability"
	"finitefield.org/toolskit/internal/platform/sessions"
	"finitefield.org/toolskit/internal/score"
)

var version = "dev"

func main() {
	startedAt := time.Now().UTC()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("toolskit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scoreStore, closeScores, err := openScoreStore(ctx, cfg.Scores)
	if err != nil {
		logger.Fatal("failed to open score store", zap.Error(err))
	}
	defer closeScores()

	metrics, err := observability.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		logger.Fatal("failed to initialise metrics", zap.Error(err))
	}

	registry := calc.DefaultRegistry()
	sessionStore := sessions.NewMemoryStore[*calc.Session](cfg.Sessions.TTL)
	timerStore := handlers.NewTimerStore(cfg.Sessions.TTL)
	tracker := score.NewTracker(scoreStore.Store)

	pages := content.NewPages(content.PagesDeps{
		Dir:      cfg.Content.Dir,
		CacheTTL: cfg.Content.CacheTTL,
		Logger:   logger.Named("content"),
	})
	blog := content.NewBlogClient(content.BlogDeps{
		BaseURL:  cfg.Blog.APIURL,
		Timeout:  cfg.Blog.Timeout,
		CacheTTL: cfg.Blog.CacheTTL,
		Logger:   logger.Named("blog"),
	})

	toolHandlers := handlers.NewToolHandlers(handlers.ToolDeps{
		Registry:      registry,
		Sessions:      sessionStore,
		Metrics:       metrics,
		DefaultLocale: cfg.Locale.Default,
		Logger:        logger.Named("sessions"),
	})
	convertHandlers := handlers.NewConvertHandlers(nil, metrics, cfg.Locale.Default)
	scoreHandlers := handlers.NewScoreHandlers(tracker, metrics, cfg.Locale.Default)
	timerHandlers := handlers.NewTimerHandlers(handlers.TimerDeps{
		Sessions: timerStore,
		Tracker:  tracker,
		Metrics:  metrics,
		Logger:   logger.Named("timers"),
	})
	pageHandlers, err := handlers.NewPageHandlers(handlers.PageDeps{
		Pages:         pages,
		Blog:          blog,
		Registry:      registry,
		DefaultLocale: cfg.Locale.Default,
	})
	if err != nil {
		logger.Fatal("failed to parse templates", zap.Error(err))
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthVersion(version, startedAt)}
	if scoreStore.Ping != nil {
		healthOpts = append(healthOpts, handlers.WithHealthCheck("scores", scoreStore.Ping))
	}

	router := handlers.NewRouter(
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithMiddlewares(handlers.ServiceMiddlewares(logger, cfg.Locale.Default)...),
		handlers.WithAPIRoutes(toolHandlers.Routes, convertHandlers.Routes, scoreHandlers.Routes, timerHandlers.Routes),
		handlers.WithSiteRoutes(pageHandlers.SiteRoutes),
		handlers.WithBlogRoutes(pageHandlers.BlogRoutes()),
	)

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		sessions.RunCleanup(ctx, sessionStore, cfg.Sessions.CleanupInterval, cfg.Sessions.CleanupBatchSize, time.Now, logger.Named("sessions"))
	}()
	go func() {
		defer background.Done()
		sessions.RunCleanup(ctx, timerStore, cfg.Sessions.CleanupInterval, cfg.Sessions.CleanupBatchSize, time.Now, logger.Named("timers"))
	}()
	if cfg.Content.Watch {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := pages.Watch(ctx); err != nil {
				logger.Warn("content watcher stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("http server starting",
			zap.Bool("blog", blog != nil), zap.String("content_dir", pages.Dir()), zap.String("locale", cfg.Locale.Default.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	background.Wait()
}

type scoreBackend struct {
	Store score.Store
	Ping  handlers.HealthCheck
}

func openScoreStore(ctx context.Context, cfg config.ScoreConfig) (scoreBackend, func(), error) {
	if cfg.DBPath == "" {
		return scoreBackend{Store: score.NewMemoryStore()}, func() {}, nil
	}
	store, err := score.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return scoreBackend{}, nil, err
	}
	closeFn := func() {
		_ = store.Close()
	}
	return scoreBackend{Store: store, Ping: store.Ping}, closeFn, nil
}
