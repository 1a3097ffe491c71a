// Package scheduler runs periodic engine maintenance.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/services/knowledge"
)

// Scheduler periodically sweeps expired query cache entries and rebuilds
// the keyword index from the document store.
type Scheduler struct {
	knowledge *knowledge.Service
	cache     interfaces.QueryCache
	cron      *cron.Cron
	logger    arbor.ILogger
}

// NewScheduler creates a maintenance scheduler.
func NewScheduler(svc *knowledge.Service, cache interfaces.QueryCache, logger arbor.ILogger) *Scheduler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Scheduler{
		knowledge: svc,
		cache:     cache,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
	}
}

// Start begins scheduled maintenance.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: every 10 minutes
		schedule = "0 */10 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runMaintenance()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Maintenance scheduler started")

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// RunNow triggers an immediate maintenance run.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate maintenance run")
	go s.runMaintenance()
}

func (s *Scheduler) runMaintenance() {
	swept := s.cache.Sweep()

	if err := s.knowledge.RebuildKeywordIndex(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled keyword index rebuild failed")
		return
	}

	s.logger.Info().
		Int("cache_entries_swept", swept).
		Msg("Scheduled maintenance completed")
}
