package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apisentinel/apisentinel/internal/alert"
	"github.com/apisentinel/apisentinel/internal/config"
	"github.com/apisentinel/apisentinel/internal/detector"
	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
)

// Sweeper drives the two periodic loops: the detection sweep over all
// projects and the alert sweep over unprocessed anomalies.
type Sweeper struct {
	projects   project.Repository
	anomalies  anomaly.Repository
	engine     *detector.Engine
	dispatcher *alert.Dispatcher
	cfg        config.WorkerConfig
	logger     *logger.Logger

	scheduler *cron.Cron
}

// NewSweeper creates a new sweep scheduler
func NewSweeper(
	projects project.Repository,
	anomalies anomaly.Repository,
	engine *detector.Engine,
	dispatcher *alert.Dispatcher,
	cfg config.WorkerConfig,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		projects:   projects,
		anomalies:  anomalies,
		engine:     engine,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log,
	}
}

// Start schedules both sweeps and blocks until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) error {
	s.scheduler = cron.New()

	if _, err := s.scheduler.AddFunc(s.cfg.DetectionSchedule, func() {
		s.DetectionSweep(ctx)
	}); err != nil {
		return fmt.Errorf("invalid detection schedule: %w", err)
	}

	if _, err := s.scheduler.AddFunc(s.cfg.AlertSchedule, func() {
		s.AlertSweep(ctx)
	}); err != nil {
		return fmt.Errorf("invalid alert schedule: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"detection_schedule": s.cfg.DetectionSchedule,
		"alert_schedule":     s.cfg.AlertSchedule,
	}).Info("Starting sweep scheduler")

	// Run an initial pass so a fresh process doesn't wait a full interval
	s.DetectionSweep(ctx)
	s.AlertSweep(ctx)

	s.scheduler.Start()

	<-ctx.Done()

	stopCtx := s.scheduler.Stop()
	<-stopCtx.Done()
	s.logger.Info("Sweep scheduler stopped")
	return nil
}

// DetectionSweep runs the detection engine once per known project.
// Per-project failures are isolated; one project's failure never blocks
// the others.
func (s *Sweeper) DetectionSweep(ctx context.Context) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list projects for detection sweep")
		return
	}

	for _, p := range projects {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.engine.Detect(ctx, p.ID); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"project_id": p.ID,
				"project":    p.Name,
			}).ErrorWithErr(err, "Detection failed for project")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"projects": len(projects),
	}).Info("Detection sweep completed")
}

// AlertSweep dispatches alerts for recent unprocessed anomalies. Each
// anomaly is claimed (processed flipped false to true) before dispatch is
// attempted, so a crash mid-dispatch drops at most one alert and a
// restart never re-alerts. Claims lost to a concurrent sweeper are
// skipped silently.
func (s *Sweeper) AlertSweep(ctx context.Context) {
	since := time.Now().UTC().Add(-s.cfg.AlertRecency)

	anomalies, err := s.anomalies.FindUnprocessed(ctx, since)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to find unprocessed anomalies")
		return
	}

	dispatched := 0
	for _, a := range anomalies {
		if ctx.Err() != nil {
			return
		}

		claimed, err := s.anomalies.ClaimProcessed(ctx, a.ID)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"anomaly_id": a.ID,
			}).ErrorWithErr(err, "Failed to claim anomaly")
			continue
		}
		if !claimed {
			continue
		}

		result, err := s.dispatcher.Dispatch(ctx, a.ID)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"anomaly_id": a.ID,
			}).ErrorWithErr(err, "Alert dispatch failed")
			continue
		}
		dispatched++

		if result.Outcome == alert.OutcomeFailed {
			s.logger.WithFields(map[string]interface{}{
				"anomaly_id": a.ID,
				"outcome":    result.Outcome,
			}).Warn("Alert delivered partially or not at all")
		}
	}

	if len(anomalies) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"candidates": len(anomalies),
			"dispatched": dispatched,
		}).Info("Alert sweep completed")
	}
}
