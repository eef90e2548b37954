package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TohaSav/marketplace-creation-ozon-sub001/internal/reconcile"
)

// Scheduler runs the background sweep that re-queries the gateway for payment
// intents left open past the orphan threshold, e.g. when the buyer closed the
// tab before returning and the webhook never arrived.
type Scheduler struct {
	cron      *cron.Cron
	engine    *reconcile.Engine
	threshold time.Duration
	logger    *slog.Logger
}

// NewScheduler builds the cron-backed job scheduler.
func NewScheduler(engine *reconcile.Engine, threshold time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		engine:    engine,
		threshold: threshold,
		logger:    logger,
	}
}

// Start registers the sweep on the given cron schedule and launches the scheduler.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := s.engine.Sweep(sweepCtx, s.threshold); err != nil {
			s.logger.Error("orphan sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("orphan sweep scheduled", "schedule", schedule, "threshold", s.threshold)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
