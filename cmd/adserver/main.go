package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/database"
	"github.com/radiusdt/game-ads/internal/httpserver"
	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/middleware"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting game-ads",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Store.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A backend that fails to open leaves the service up in degraded mode.
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("backend unavailable, serving degraded", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	} else {
		defer closeBackend()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Backend: backend,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})

	// Recovery -> RequestID -> Logging -> RateLimit -> Handler
	recoveryMW := middleware.NewRecoveryMiddleware(logger)
	loggingMW := middleware.NewLoggingMiddleware(logger, cfg.Metrics.Path)
	rateLimitMW := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimitMW.SetMetrics(m)

	finalHandler := recoveryMW.Handler(
		middleware.RequestIDMiddleware(
			loggingMW.Handler(
				rateLimitMW.Handler(handler),
			),
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Drop idle per-IP limiters
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := rateLimitMW.CleanupIPLimiters(time.Hour); n > 0 {
					logger.Debug("removed idle rate limiters", zap.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	cancel()

	logger.Info("server stopped")
}

// openBackend connects the configured store. The returned func releases the
// underlying connection.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Backend, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 2*cfg.Store.Timeout)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.Store.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, nil, fmt.Errorf("GAMEADS_REDIS_ADDR is not set")
		}
		rdb, err := database.NewRedisDB(connectCtx, cfg.Redis, cfg.Store.Timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewRedisStore(rdb.Client, cfg.Redis.KeyPrefix, cfg.Store.Timeout, logger)
		return store, func() { _ = rdb.Close() }, nil

	case config.BackendPostgres:
		if cfg.Database.Host == "" || cfg.Database.User == "" {
			return nil, nil, fmt.Errorf("GAMEADS_DB_HOST and GAMEADS_DB_USER are required")
		}
		db, err := database.NewPostgresDB(connectCtx, cfg.Database, cfg.Store.Timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(db.Pool, cfg.Store.Timeout, logger)
		if err := store.Migrate(connectCtx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.BackendSQLite:
		db, err := database.NewSQLiteDB(connectCtx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewSQLiteStore(db.DB, logger)
		if err := store.Migrate(connectCtx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
}
