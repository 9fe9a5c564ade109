package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ChallengeCleaner удаляет отработавшие коды подтверждения
type ChallengeCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// HitPurger чистит счётчики лимитера
type HitPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами обслуживания
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	cleaner ChallengeCleaner
	purger  HitPurger
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler создаёт планировщик, spec в стандартном формате cron
func NewScheduler(spec string, cleaner ChallengeCleaner, purger HitPurger, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		spec:    spec,
		cleaner: cleaner,
		purger:  purger,
		timeout: time.Minute,
		logger:  logger,
	}
}

// Start регистрирует задачи и запускает cron
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunHousekeeping); err != nil {
		return fmt.Errorf("schedule housekeeping %q: %w", s.spec, err)
	}

	s.logger.Info("Starting background scheduler", zap.String("housekeeping", s.spec))
	s.cron.Start()
	return nil
}

// Stop останавливает cron и ждёт завершения запущенных задач
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Housekeeping did not finish before shutdown")
	}
}

// RunHousekeeping удаляет просроченные коды и старые записи лимитера
func (s *Scheduler) RunHousekeeping() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	challenges, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		s.logger.Error("Failed to clean verification challenges", zap.Error(err))
	}

	hits, err := s.purger.Purge(ctx)
	if err != nil {
		s.logger.Error("Failed to purge rate limit hits", zap.Error(err))
	}

	s.logger.Info("Housekeeping completed",
		zap.Int64("challenges_removed", challenges),
		zap.Int64("rate_limit_hits_removed", hits))
}
