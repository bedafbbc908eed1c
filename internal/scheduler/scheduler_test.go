package scheduler

import (
	"context"
	"errors"
	"testing"

	"stockcheck/backend/internal/domain"
	"stockcheck/backend/internal/service"
	"stockcheck/backend/internal/store/memory"
)

type stubRoller struct {
	calls []domain.CarryMode
	err   error
}

func (r *stubRoller) RollOverDue(_ context.Context, mode domain.CarryMode) (*domain.PeriodView, error) {
	r.calls = append(r.calls, mode)
	return nil, r.err
}

func TestRollOverUsesConfiguredCarryMode(t *testing.T) {
	roller := &stubRoller{}

	New("0 3 * * *", false, roller, nil).rollOver()
	New("0 3 * * *", true, roller, nil).rollOver()

	if len(roller.calls) != 2 || roller.calls[0] != domain.CarryStocked || roller.calls[1] != domain.CarryAll {
		t.Fatalf("unexpected carry modes %v", roller.calls)
	}
}

func TestRollOverSurvivesErrors(t *testing.T) {
	roller := &stubRoller{err: errors.New("database down")}

	New("0 3 * * *", false, roller, nil).rollOver()

	if len(roller.calls) != 1 {
		t.Fatalf("expected one attempt, got %d", len(roller.calls))
	}
}

func TestRollOverCreatesNextPeriod(t *testing.T) {
	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, service.Options{})

	New("0 3 * * *", false, svc, nil).rollOver()

	periods, err := repo.ListPeriods(context.Background())
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected the ended seed period to roll over, got %d periods", len(periods))
	}
	if len(periods[0].Items) != 3 {
		t.Fatalf("expected zero-carried item dropped, got %d items", len(periods[0].Items))
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New("not a cron spec", false, &stubRoller{}, nil)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatalf("expected invalid cron spec to fail")
	}
}
