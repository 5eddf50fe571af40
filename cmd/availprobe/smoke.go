package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/availprobe/internal/alert"
	"github.com/hazz-dev/availprobe/internal/config"
	"github.com/hazz-dev/availprobe/internal/metrics"
	"github.com/hazz-dev/availprobe/internal/probe"
	"github.com/hazz-dev/availprobe/internal/smoke"
	"github.com/hazz-dev/availprobe/internal/storage"
)

func executeSmoke(cmd *cobra.Command, cfg *config.Config) error {
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	f, err := smoke.OpenResults(cfg.ResultsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	client := probe.New(cfg.Target, cfg.Timeout.Duration)
	suite := smoke.New(client, logger)

	// The transcript goes to stdout and, cumulatively, to the results file.
	out := io.MultiWriter(cmd.OutOrStdout(), f)

	ctx := cmd.Context()
	outcome, runErr := suite.Run(ctx, out)
	recordSmoke(ctx, db, outcome, runErr == nil, logger)

	if runErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Service check failed: %v\nMake sure ws-availability is running and reachable at %s, then re-run.\n",
			runErr, cfg.Target)
		return fmt.Errorf("precondition failed")
	}

	logger.Info("smoke suite complete", "results_file", cfg.ResultsFile)
	return nil
}

// recordSmoke persists a suite outcome. Storage failures are logged, not
// fatal: the transcript on disk is the primary record.
func recordSmoke(ctx context.Context, db *storage.DB, outcome *smoke.Outcome, ok bool, logger *slog.Logger) {
	runID, err := db.InsertRun(ctx, "smoke", outcome.Target, outcome.StartedAt)
	if err != nil {
		logger.Error("recording smoke run", "error", err)
		return
	}

	for _, section := range outcome.Sections {
		for _, r := range section.Results {
			err := db.InsertSample(ctx, storage.Sample{
				RunID:      runID,
				Label:      r.Label,
				ElapsedMs:  r.Elapsed.Milliseconds(),
				SizeBytes:  r.Size,
				Status:     r.StatusCode,
				Error:      r.Error,
				RecordedAt: r.FetchedAt,
			})
			if err != nil {
				logger.Error("recording sample", "label", r.Label, "error", err)
			}
		}
		if section.Scenario.Kind == smoke.Concurrent {
			err := db.InsertSample(ctx, storage.Sample{
				RunID:      runID,
				Label:      section.Scenario.Name,
				ElapsedMs:  section.Aggregate.Milliseconds(),
				RecordedAt: outcome.StartedAt,
			})
			if err != nil {
				logger.Error("recording sample", "label", section.Scenario.Name, "error", err)
			}
		}
	}

	if err := db.FinishRun(ctx, runID, time.Now(), ok); err != nil {
		logger.Error("finishing smoke run", "error", err)
	}
}

func observeSmoke(m *metrics.Metrics, outcome *smoke.Outcome, ok bool) {
	m.ObserveRun("smoke", ok)
	for _, section := range outcome.Sections {
		for _, r := range section.Results {
			m.ObserveProbe(section.Scenario.Name, r.Elapsed, r.OK())
		}
		if section.Scenario.Kind == smoke.Concurrent {
			m.ObserveProbe(section.Scenario.Name, section.Aggregate, true)
		}
	}
}

func notifySmoke(alerter *alert.Alerter, outcome *smoke.Outcome, runErr error, slow time.Duration) {
	if runErr != nil {
		alerter.Notify(alert.Event{
			Kind:       alert.KindPreconditionFailed,
			Target:     outcome.Target,
			Detail:     runErr.Error(),
			OccurredAt: time.Now(),
		})
		return
	}

	for _, section := range outcome.Sections {
		for _, r := range section.Results {
			if r.Elapsed > slow {
				alerter.Notify(alert.Event{
					Kind:       alert.KindSlowScenario,
					Target:     outcome.Target,
					Label:      r.Label,
					ElapsedMs:  r.Elapsed.Milliseconds(),
					OccurredAt: time.Now(),
				})
			}
		}
	}
}
