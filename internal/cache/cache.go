package cache

import (
	"context"
	"time"

	"stockcheck/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, periodID string) (*domain.PeriodReport, bool, error)
	Set(ctx context.Context, periodID string, value *domain.PeriodReport, ttl time.Duration) error
	Delete(ctx context.Context, periodID string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.PeriodReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.PeriodReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Delete(_ context.Context, _ string) error {
	return nil
}
