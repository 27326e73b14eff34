// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/rules"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	rules    *rules.Service
	spec     string
	lookback time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a job scheduler running the auto-tag pass on the given
// 5-field cron spec.
func NewScheduler(rulesService *rules.Service, spec string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		rules:    rulesService,
		spec:     spec,
		lookback: 90 * 24 * time.Hour,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.applyRules)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("spec", s.spec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the auto-tag pass (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.applyRules()
}

// applyRules tags untagged transactions from the lookback window.
func (s *Scheduler) applyRules() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting nightly auto-tag pass")

	to := time.Now()
	from := to.Add(-s.lookback)
	result, err := s.rules.Apply(ctx, rules.ApplyOptions{
		DateFrom: &from,
		DateTo:   &to,
	})
	if err != nil {
		s.logger.Error("auto-tag pass failed", slog.Any("error", err))
		return
	}

	s.logger.Info("nightly auto-tag pass completed",
		slog.Int("scanned", result.Scanned),
		slog.Int("tagged", result.Tagged),
		slog.Int("skipped", result.Skipped),
	)
}
