package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/availprobe/internal/config"
	"github.com/hazz-dev/availprobe/internal/load"
	"github.com/hazz-dev/availprobe/internal/probe"
	"github.com/hazz-dev/availprobe/internal/storage"
)

func executeLoad(cmd *cobra.Command, cfg *config.Config) error {
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client := probe.New(cfg.Target, cfg.Timeout.Duration)
	runner := load.NewRunner(client, cfg.Load, cfg.Alerts.SlowThreshold.Duration, logger)

	ctx := cmd.Context()
	outcome, err := runner.Run(ctx, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("running load test: %w", err)
	}

	recordLoad(ctx, db, cfg.Target, outcome, logger)
	return nil
}

// recordLoad stores one aggregate sample per task label. A load run can make
// thousands of requests; the history only needs the per-task rollups.
func recordLoad(ctx context.Context, db *storage.DB, target string, outcome *load.Outcome, logger *slog.Logger) {
	runID, err := db.InsertRun(ctx, "load", target, outcome.StartedAt)
	if err != nil {
		logger.Error("recording load run", "error", err)
		return
	}

	for _, ts := range outcome.Tasks {
		err := db.InsertSample(ctx, storage.Sample{
			RunID:      runID,
			Label:      ts.Name,
			ElapsedMs:  ts.Stats.Avg.Milliseconds(),
			SizeBytes:  int64(ts.Stats.AvgSize),
			RecordedAt: outcome.StartedAt,
		})
		if err != nil {
			logger.Error("recording task stats", "task", ts.Name, "error", err)
		}
	}

	if err := db.FinishRun(ctx, runID, time.Now(), outcome.TotalFailures == 0); err != nil {
		logger.Error("finishing load run", "error", err)
	}
}
