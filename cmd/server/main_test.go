package main

import (
	"context"
	"testing"
	"time"

	"stockcheck/backend/internal/cache"
	"stockcheck/backend/internal/config"
	"stockcheck/backend/internal/store/memory"
)

func TestOpenRepositoryWithoutDatabaseUsesSeededMemory(t *testing.T) {
	repo, closers, err := openRepository(context.Background(), config.Config{}, nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if _, ok := repo.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", repo)
	}
	if len(closers) != 0 {
		t.Fatalf("expected nothing to close, got %d", len(closers))
	}
	if _, err := repo.GetPeriod(context.Background(), "period-seed"); err != nil {
		t.Fatalf("expected seeded period: %v", err)
	}
}

func TestOpenReportCacheFallsBackToNoop(t *testing.T) {
	reports, closers := openReportCache(context.Background(), config.Config{}, nil)
	if _, ok := reports.(cache.NoopReportCache); !ok || len(closers) != 0 {
		t.Fatalf("expected noop cache without redis, got %T", reports)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reports, closers = openReportCache(ctx, config.Config{RedisAddr: "127.0.0.1:1"}, nil)
	if _, ok := reports.(cache.NoopReportCache); !ok || len(closers) != 0 {
		t.Fatalf("expected noop cache when redis is unreachable, got %T", reports)
	}
}
