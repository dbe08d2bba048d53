package service

import (
	"context"
	"time"

	"sendlog/internal/constants"

	"github.com/sirupsen/logrus"
)

// ExpiryCleaner is the sweep entry point the scheduler drives.
type ExpiryCleaner interface {
	CleanUpExpiredEntries(ctx context.Context) (int, error)
}

// Scheduler runs the expiry sweep once at startup and then on a fixed
// cadence for the lifetime of the process. It owns no payload state; tearing
// down the context (or calling Stop) is the only way it ends.
type Scheduler struct {
	cleaner       ExpiryCleaner
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(cleaner ExpiryCleaner, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		cleaner:       cleaner,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting send log expiry scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.Info("Running scheduled send log cleanup")

	deleted, err := s.cleaner.CleanUpExpiredEntries(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Couldn't prune stale send log entries")
		return
	}
	s.logger.WithField("deleted", deleted).Info("Successfully completed cleanup")
}
