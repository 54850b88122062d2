// Package scheduler wires up the cron job that periodically refreshes the
// popularity snapshot used for scoring.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/metrics"
)

// Refresher recomputes a snapshot and reports its size.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	spec      string // cron spec, e.g. "@every 5m"
	logger    zerolog.Logger
	initial   sync.WaitGroup // refresh started by Start, outside cron
}

// New creates a Scheduler that refreshes on spec.
func New(refresher Refresher, spec string, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		refresher: refresher,
		spec:      spec,
		logger:    logger,
	}
}

// Start registers the job and starts the scheduler. Also runs one refresh
// immediately so scoring does not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runRefresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("cron started")

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.runRefresh(ctx)
	}()

	return nil
}

// Stop shuts the scheduler down and waits for running refreshes, the
// initial one included, to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.logger.Info().Msg("cron stopped")
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	n, err := s.refresher.Refresh(ctx)
	if err != nil {
		metrics.PopularityRefreshes.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("popularity refresh failed, keeping previous snapshot")
		return
	}
	metrics.PopularityRefreshes.WithLabelValues("ok").Inc()
	metrics.PopularitySnapshotAds.Set(float64(n))
	s.logger.Debug().Int("ads", n).Msg("popularity snapshot refreshed")
}
