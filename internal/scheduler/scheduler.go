package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stockcheck/backend/internal/domain"
)

// PeriodRoller creates the next stock period once the latest one has ended.
type PeriodRoller interface {
	RollOverDue(ctx context.Context, mode domain.CarryMode) (*domain.PeriodView, error)
}

// Scheduler runs the automatic period roll-forward.
type Scheduler struct {
	cron   *cron.Cron
	roller PeriodRoller
	spec   string
	mode   domain.CarryMode
	logger *zap.Logger
}

// New returns a scheduler that rolls periods forward on spec, a standard
// five field cron expression. carryAll keeps items that had no stock.
func New(spec string, carryAll bool, roller PeriodRoller, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := domain.CarryStocked
	if carryAll {
		mode = domain.CarryAll
	}

	return &Scheduler{
		cron:   cron.New(),
		roller: roller,
		spec:   spec,
		mode:   mode,
		logger: logger.Named("scheduler"),
	}
}

func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("rollover_cron", s.spec), zap.String("carry", string(s.mode)))

	if _, err := s.cron.AddFunc(s.spec, s.rollOver); err != nil {
		s.logger.Error("failed to schedule period roll-forward", zap.Error(err))
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) rollOver() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	created, err := s.roller.RollOverDue(ctx, s.mode)
	if err != nil {
		s.logger.Error("period roll-forward failed", zap.Error(err))
		return
	}
	if created == nil {
		s.logger.Debug("no period due for roll-forward")
		return
	}
	s.logger.Info("period rolled forward",
		zap.String("period_id", created.ID),
		zap.String("name", created.PeriodName),
		zap.Int("items", len(created.Items)),
	)
}
