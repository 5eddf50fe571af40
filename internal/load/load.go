// Package load drives weighted random traffic against the availability
// service with a fixed pool of simulated users.
package load

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/availprobe/internal/bench"
	"github.com/hazz-dev/availprobe/internal/config"
	"github.com/hazz-dev/availprobe/internal/probe"
)

// TaskStats aggregates the measurements of one task across all users.
type TaskStats struct {
	Name     string
	Failures int
	Slow     int
	Stats    bench.Stats
}

// Outcome is the aggregate record of one load run.
type Outcome struct {
	StartedAt     time.Time
	Elapsed       time.Duration
	Users         int
	TotalRequests int
	TotalFailures int
	TotalSlow     int
	Tasks         []TaskStats
}

// Runner spawns simulated users that issue weighted random requests.
type Runner struct {
	client *probe.Client
	cfg    config.LoadConfig
	slow   time.Duration
	logger *slog.Logger
}

// NewRunner creates a load Runner. Requests slower than slow are counted and
// logged. Pass nil logger to use the default logger.
func NewRunner(client *probe.Client, cfg config.LoadConfig, slow time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{client: client, cfg: cfg, slow: slow, logger: logger}
}

type recorder struct {
	mu     sync.Mutex
	byTask map[string]*taskRecord
}

type taskRecord struct {
	times    []time.Duration
	sizes    []int64
	failures int
	slow     int
}

func (rec *recorder) record(name string, r probe.Result, slow time.Duration) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	tr, ok := rec.byTask[name]
	if !ok {
		tr = &taskRecord{}
		rec.byTask[name] = tr
	}
	tr.times = append(tr.times, r.Elapsed)
	tr.sizes = append(tr.sizes, r.Size)
	if !r.OK() {
		tr.failures++
	}
	if r.Elapsed > slow {
		tr.slow++
	}
}

// Run spawns users at the configured rate and drives traffic for the
// configured duration, then prints per-task aggregate statistics to w.
func (r *Runner) Run(ctx context.Context, w io.Writer) (*Outcome, error) {
	tasks := Tasks(r.cfg)
	total := totalWeight(tasks)
	if total <= 0 {
		return nil, fmt.Errorf("no weighted tasks configured")
	}

	outcome := &Outcome{
		StartedAt: time.Now(),
		Users:     r.cfg.Users,
	}
	rec := &recorder{byTask: make(map[string]*taskRecord)}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Duration.Duration)
	defer cancel()

	r.logger.Info("starting load run",
		"target", r.client.Target(),
		"users", r.cfg.Users,
		"spawn_rate", r.cfg.SpawnRate,
		"duration", r.cfg.Duration.Duration,
	)

	spawnGap := time.Second / time.Duration(r.cfg.SpawnRate)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < r.cfg.Users; i++ {
		seed := time.Now().UnixNano() + int64(i)
		g.Go(func() error {
			r.runUser(gctx, rand.New(rand.NewSource(seed)), tasks, total, rec)
			return nil
		})

		// Stagger user start-up like a spawn rate of N users per second.
		select {
		case <-runCtx.Done():
		case <-time.After(spawnGap):
		}
	}
	g.Wait()
	outcome.Elapsed = time.Since(outcome.StartedAt)

	r.summarize(outcome, rec)
	writeOutcome(w, outcome)
	return outcome, nil
}

func (r *Runner) runUser(ctx context.Context, rng *rand.Rand, tasks []Task, total int, rec *recorder) {
	for {
		if ctx.Err() != nil {
			return
		}

		task := pickTask(rng, tasks, total)
		path, params := task.Build(rng)
		result := r.client.Fetch(ctx, task.Name, path, params)
		rec.record(task.Name, result, r.slow)

		if result.Elapsed > r.slow {
			r.logger.Warn("slow request", "task", task.Name, "elapsed", result.Elapsed)
		}

		wait := r.cfg.WaitMin.Duration
		if span := r.cfg.WaitMax.Duration - r.cfg.WaitMin.Duration; span > 0 {
			wait += time.Duration(rng.Int63n(int64(span)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (r *Runner) summarize(outcome *Outcome, rec *recorder) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	names := make([]string, 0, len(rec.byTask))
	for name := range rec.byTask {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tr := rec.byTask[name]
		ts := TaskStats{
			Name:     name,
			Failures: tr.failures,
			Slow:     tr.slow,
			Stats:    bench.Summarize(tr.times, tr.sizes),
		}
		outcome.Tasks = append(outcome.Tasks, ts)
		outcome.TotalRequests += ts.Stats.Iterations
		outcome.TotalFailures += tr.failures
		outcome.TotalSlow += tr.slow
	}
}

func writeOutcome(w io.Writer, outcome *Outcome) {
	fmt.Fprintf(w, "\nLoad run finished in %s: %d requests, %d failures, %d slow\n\n",
		outcome.Elapsed.Round(time.Millisecond), outcome.TotalRequests, outcome.TotalFailures, outcome.TotalSlow)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tCOUNT\tFAILURES\tSLOW\tMEAN\tP95")
	for _, ts := range outcome.Tasks {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			ts.Name,
			ts.Stats.Iterations,
			ts.Failures,
			ts.Slow,
			ts.Stats.Avg.Round(time.Millisecond),
			ts.Stats.P95.Round(time.Millisecond),
		)
	}
	tw.Flush()
}
