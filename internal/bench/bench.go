// Package bench repeats a single query against the availability service and
// reports latency distribution and throughput.
package bench

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/hazz-dev/availprobe/internal/probe"
)

// Outcome holds the per-iteration measurements and summary of one benchmark.
type Outcome struct {
	Path      string
	Params    url.Values
	StartedAt time.Time
	Results   []probe.Result
	Stats     Stats
}

// Runner benchmarks one query shape.
type Runner struct {
	client     *probe.Client
	path       string
	params     url.Values
	iterations int
}

// NewRunner creates a Runner that fetches path with params iterations times.
func NewRunner(client *probe.Client, path string, params url.Values, iterations int) *Runner {
	return &Runner{
		client:     client,
		path:       path,
		params:     params,
		iterations: iterations,
	}
}

// Run executes the benchmark, printing one line per iteration to w followed
// by summary statistics. Non-2xx iterations are recorded, not retried.
func (r *Runner) Run(ctx context.Context, w io.Writer) (*Outcome, error) {
	if r.iterations < 1 {
		return nil, fmt.Errorf("iterations must be at least 1, got %d", r.iterations)
	}

	outcome := &Outcome{
		Path:      r.path,
		Params:    r.params,
		StartedAt: time.Now(),
	}

	fmt.Fprintf(w, "Benchmarking %s (%d iterations)\n\n", r.client.URL(r.path, r.params), r.iterations)

	times := make([]time.Duration, 0, r.iterations)
	sizes := make([]int64, 0, r.iterations)
	for i := 0; i < r.iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		label := fmt.Sprintf("iteration %d", i+1)
		result := r.client.Fetch(ctx, label, r.path, r.params)
		outcome.Results = append(outcome.Results, result)
		times = append(times, result.Elapsed)
		sizes = append(sizes, result.Size)

		fmt.Fprintf(w, "Iteration %d/%d: %.4fs (%d)\n", i+1, r.iterations, result.Elapsed.Seconds(), result.StatusCode)
	}

	outcome.Stats = Summarize(times, sizes)
	writeStats(w, outcome.Stats)
	return outcome, nil
}

func writeStats(w io.Writer, st Stats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "Average Time: %.4fs\n", st.Avg.Seconds())
	fmt.Fprintf(w, "Min Time: %.4fs\n", st.Min.Seconds())
	fmt.Fprintf(w, "Max Time: %.4fs\n", st.Max.Seconds())
	fmt.Fprintf(w, "P50 (Median): %.4fs\n", st.P50.Seconds())
	fmt.Fprintf(w, "P95: %.4fs\n", st.P95.Seconds())
	fmt.Fprintf(w, "P99: %.4fs\n", st.P99.Seconds())
	fmt.Fprintf(w, "Avg Response Size: %.0f bytes\n", st.AvgSize)
	fmt.Fprintf(w, "Throughput: %.2f KB/s\n", st.ThroughputKBs)
}
