package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/availprobe/internal/bench"
	"github.com/hazz-dev/availprobe/internal/config"
	"github.com/hazz-dev/availprobe/internal/probe"
	"github.com/hazz-dev/availprobe/internal/storage"
)

func executeBench(cmd *cobra.Command, cfg *config.Config) error {
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	params := url.Values{}
	for k, v := range cfg.Bench.Params {
		params.Set(k, v)
	}

	client := probe.New(cfg.Target, cfg.Timeout.Duration)
	runner := bench.NewRunner(client, cfg.Bench.Path, params, cfg.Bench.Iterations)

	ctx := cmd.Context()
	outcome, err := runner.Run(ctx, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("running benchmark: %w", err)
	}

	recordBench(ctx, db, cfg.Target, outcome, logger)
	return nil
}

func recordBench(ctx context.Context, db *storage.DB, target string, outcome *bench.Outcome, logger *slog.Logger) {
	runID, err := db.InsertRun(ctx, "bench", target, outcome.StartedAt)
	if err != nil {
		logger.Error("recording bench run", "error", err)
		return
	}

	ok := true
	for _, r := range outcome.Results {
		if !r.OK() {
			ok = false
		}
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

	if err := db.FinishRun(ctx, runID, time.Now(), ok); err != nil {
		logger.Error("finishing bench run", "error", err)
	}
}
