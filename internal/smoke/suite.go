// Package smoke runs the fixed six-scenario smoke suite against a running
// ws-availability service and writes a human-readable transcript.
package smoke

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/availprobe/internal/probe"
)

// Section holds the recorded measurements for one scenario.
type Section struct {
	Scenario Scenario
	// Results holds one entry for Single scenarios and two (cold, warm) for
	// ColdWarm. Empty for Concurrent: individual outcomes are not inspected.
	Results []probe.Result
	// Aggregate is the joined wall-clock span of a Concurrent scenario.
	Aggregate time.Duration
}

// Outcome is the full record of one suite run.
type Outcome struct {
	Target    string
	StartedAt time.Time
	Version   probe.Result
	Sections  []Section
}

// Suite runs the smoke scenarios sequentially against one service.
type Suite struct {
	client *probe.Client
	logger *slog.Logger
}

// New creates a Suite. Pass nil logger to use the default logger.
func New(client *probe.Client, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{client: client, logger: logger}
}

// Run executes the precondition check and, if it passes, all six scenarios
// in order, writing the transcript to w as it goes. If the precondition
// fails, only the header is written and an error is returned; no timed
// probe runs.
func (s *Suite) Run(ctx context.Context, w io.Writer) (*Outcome, error) {
	outcome := &Outcome{
		Target:    s.client.Target(),
		StartedAt: time.Now(),
	}
	writeHeader(w, outcome.Target, outcome.StartedAt)

	s.logger.Info("checking service", "target", outcome.Target)
	outcome.Version = s.client.Fetch(ctx, "precondition", "/version", nil)
	if !outcome.Version.OK() {
		return outcome, fmt.Errorf("service not reachable at %s/version: %s",
			outcome.Target, preconditionDetail(outcome.Version))
	}
	s.logger.Info("service is up", "elapsed", outcome.Version.Elapsed)

	for _, sc := range Scenarios() {
		s.logger.Info("running scenario", "name", sc.Name)
		section := s.runScenario(ctx, sc)
		outcome.Sections = append(outcome.Sections, section)
		writeSection(w, section)
	}
	return outcome, nil
}

func (s *Suite) runScenario(ctx context.Context, sc Scenario) Section {
	section := Section{Scenario: sc}

	switch sc.Kind {
	case Single:
		section.Results = []probe.Result{
			s.client.Fetch(ctx, sc.Name, sc.Path, sc.Params),
		}

	case ColdWarm:
		cold := s.client.Fetch(ctx, sc.Name+" (cold)", sc.Path, sc.Params)
		warm := s.client.Fetch(ctx, sc.Name+" (warm)", sc.Path, sc.Params)
		section.Results = []probe.Result{cold, warm}

	case Concurrent:
		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < FanOut; i++ {
			g.Go(func() error {
				s.client.Fetch(gctx, sc.Name, sc.Path, sc.Params)
				return nil
			})
		}
		g.Wait()
		section.Aggregate = time.Since(start)
	}
	return section
}

func preconditionDetail(r probe.Result) string {
	if r.Error != "" {
		return r.Error
	}
	return fmt.Sprintf("status %d", r.StatusCode)
}
