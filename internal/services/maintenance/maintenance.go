package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// Service runs scheduled housekeeping: badger value-log garbage
// collection and a vector index consistency check.
type Service struct {
	storage interfaces.StorageManager
	index   interfaces.VectorIndex
	config  *common.MaintenanceConfig
	cron    *cron.Cron
	logger  arbor.ILogger
	running bool
}

// NewService creates the maintenance scheduler. Schedules use 6-field
// cron expressions with a seconds column.
func NewService(storage interfaces.StorageManager, index interfaces.VectorIndex, config *common.MaintenanceConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		index:   index,
		config:  config,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start registers the maintenance job and starts the scheduler.
// Disabled configuration is a silent no-op.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Maintenance scheduler disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("maintenance scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 0 */6 * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runMaintenance); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// runMaintenance is the scheduled entry point.
func (s *Service) runMaintenance() {
	start := time.Now()
	s.logger.Info().Msg("Maintenance run starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.storage.RunGC(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Badger garbage collection failed")
	}

	if err := s.index.Verify(); err != nil {
		s.logger.Error().Err(err).Msg("Vector index consistency check failed")
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("Maintenance run complete")
}
