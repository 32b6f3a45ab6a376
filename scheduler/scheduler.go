// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"mabletask/funnel/models"
	"mabletask/funnel/pipeline"
)

// Runner is the part of pipeline.Runner the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// Scheduler runs the pipeline on a fixed schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	logger *slog.Logger
}

// New creates a scheduler for the standard five-field cron spec.
func New(spec string, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the pipeline job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop waits for a running job to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	report, err := s.runner.Run(context.Background())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Info("scheduled run skipped, another run is active")
			return
		}
		s.logger.Error("scheduled pipeline run failed", "error", err)
		return
	}
	s.logger.Info("scheduled pipeline run complete", "run_id", report.RunID)
}
