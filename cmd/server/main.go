package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stockcheck/backend/internal/cache"
	"stockcheck/backend/internal/config"
	"stockcheck/backend/internal/httpapi"
	"stockcheck/backend/internal/logger"
	"stockcheck/backend/internal/report"
	"stockcheck/backend/internal/scheduler"
	"stockcheck/backend/internal/service"
	"stockcheck/backend/internal/store"
	"stockcheck/backend/internal/store/memory"
	pgstore "stockcheck/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	base := logger.Must(logger.New(cfg.LogLevel, cfg.LogFormat))
	defer func() { _ = base.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, base)
	if err != nil {
		base.Fatal("repository unavailable", zap.Error(err))
	}
	reports, cacheClosers := openReportCache(ctx, cfg, base)
	closers = append(closers, cacheClosers...)

	renderer, err := report.NewRenderer(cfg.ReportLocale)
	if err != nil {
		base.Fatal("invalid report locale", zap.String("locale", cfg.ReportLocale), zap.Error(err))
	}

	svc := service.New(repo, reports, base, service.Options{
		DefaultTaxRate: cfg.DefaultTaxRate,
		ReportCacheTTL: time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
	})
	api := httpapi.New(svc, renderer, cfg.AllowedOrigin, base)

	var jobs *scheduler.Scheduler
	if cfg.RolloverCron != "" {
		jobs = scheduler.New(cfg.RolloverCron, cfg.RolloverCarryZero, svc, base)
		if err := jobs.Start(); err != nil {
			base.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		base.Info("stock check backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			base.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		base.Error("shutdown error", zap.Error(err))
	}
	if jobs != nil {
		jobs.Stop()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			base.Error("close error", zap.Error(err))
		}
	}

	base.Info("server stopped")
}

// openRepository uses postgres when DATABASE_URL is set and refuses to fall
// back to memory if it cannot be reached.
func openRepository(ctx context.Context, cfg config.Config, base *zap.Logger) (store.Repository, []func() error, error) {
	startup := logger.Named(base, "startup")
	if cfg.DatabaseURL == "" {
		startup.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL, base)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := pg.Migrate(); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	startup.Info("repository: postgres", zap.Bool("migrated", cfg.MigrateOnStart))
	return pg, []func() error{pg.Close}, nil
}

// openReportCache uses redis when REDIS_ADDR is set and answers ping, and the
// no-op cache otherwise.
func openReportCache(ctx context.Context, cfg config.Config, base *zap.Logger) (cache.ReportCache, []func() error) {
	startup := logger.Named(base, "startup")
	if cfg.RedisAddr == "" {
		startup.Info("cache: noop")
		return cache.NoopReportCache{}, nil
	}

	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		startup.Warn("redis unavailable, using noop cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopReportCache{}, nil
	}
	startup.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
	return redisCache, []func() error{redisCache.Close}
}
