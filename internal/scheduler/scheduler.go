// Package scheduler re-runs the smoke suite at a fixed interval for watch
// mode.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunFunc executes one probe run. Errors are logged, never fatal: a failed
// run is itself an observation.
type RunFunc func(ctx context.Context) error

// Scheduler invokes a RunFunc immediately and then on every tick.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(interval time.Duration, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		run:      run,
		logger:   logger,
	}
}

// Start spawns the run loop. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the run loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately.
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	if err := s.run(ctx); err != nil {
		s.logger.Warn("probe run failed", "error", err, "elapsed", time.Since(start))
		return
	}
	s.logger.Info("probe run complete", "elapsed", time.Since(start))
}
