package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/availprobe/internal/storage"
)

type historyStore interface {
	RecentRuns(ctx context.Context, limit, offset int) ([]storage.Run, int, error)
	RunSamples(ctx context.Context, runID string) ([]storage.Sample, error)
}

func executeHistory(cmd *cobra.Command, db historyStore) error {
	out := cmd.OutOrStdout()
	runs, total, err := db.RecentRuns(context.Background(), 20, 0)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No run history. Run 'availprobe smoke' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTARGET\tSTARTED\tRESULT\tSAMPLES\tDOWNLOADED")
	for _, r := range runs {
		samples, err := db.RunSamples(context.Background(), r.ID)
		if err != nil {
			return fmt.Errorf("querying samples for %q: %w", r.ID, err)
		}

		var bytes int64
		for _, s := range samples {
			bytes += s.SizeBytes
		}

		result := "fail"
		if r.OK {
			result = "ok"
		}
		fmt.Fprintf(w, "%.8s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.Kind,
			r.Target,
			humanize.Time(r.StartedAt.Local()),
			result,
			len(samples),
			humanize.Bytes(uint64(bytes)),
		)
	}
	w.Flush()

	if total > len(runs) {
		fmt.Fprintf(out, "\nShowing %d of %d runs. Use 'availprobe serve' to browse all.\n", len(runs), total)
	}
	return nil
}
