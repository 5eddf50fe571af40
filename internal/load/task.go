package load

import (
	"math/rand"
	"net/url"
	"time"

	"github.com/hazz-dev/availprobe/internal/config"
)

// Task is one weighted request shape in the simulated traffic mix.
type Task struct {
	Name   string
	Weight int
	Build  func(r *rand.Rand) (path string, params url.Values)
}

// Tasks returns the traffic mix. Weights follow observed usage of the
// service: half the traffic queries recent data, station-scoped queries and
// extent queries make up most of the rest.
func Tasks(cfg config.LoadConfig) []Task {
	pick := func(r *rand.Rand, pool []string) string {
		if len(pool) == 0 {
			return ""
		}
		return pool[r.Intn(len(pool))]
	}

	return []Task{
		{
			Name:   "/query [recent]",
			Weight: 5,
			Build: func(r *rand.Rand) (string, url.Values) {
				start := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
				return "/query", url.Values{
					"net":   {pick(r, cfg.Networks)},
					"start": {start},
				}
			},
		},
		{
			Name:   "/query [station]",
			Weight: 3,
			Build: func(r *rand.Rand) (string, url.Values) {
				return "/query", url.Values{
					"net":   {pick(r, cfg.Networks)},
					"sta":   {pick(r, cfg.Stations)},
					"start": {"2023-01-01"},
					"end":   {"2023-02-01"},
				}
			},
		},
		{
			Name:   "/extent",
			Weight: 2,
			Build: func(r *rand.Rand) (string, url.Values) {
				return "/extent", url.Values{
					"net":   {pick(r, cfg.Networks)},
					"start": {"2023-01-01"},
				}
			},
		},
		{
			Name:   "/query [format]",
			Weight: 1,
			Build: func(r *rand.Rand) (string, url.Values) {
				return "/query", url.Values{
					"net":    {pick(r, cfg.Networks)},
					"start":  {"2023-01-01"},
					"format": {pick(r, cfg.Formats)},
				}
			},
		},
		{
			Name:   "/version",
			Weight: 1,
			Build: func(r *rand.Rand) (string, url.Values) {
				return "/version", nil
			},
		},
	}
}

// pickTask selects a task by cumulative weight.
func pickTask(r *rand.Rand, tasks []Task, total int) Task {
	n := r.Intn(total)
	for _, t := range tasks {
		n -= t.Weight
		if n < 0 {
			return t
		}
	}
	return tasks[len(tasks)-1]
}

func totalWeight(tasks []Task) int {
	total := 0
	for _, t := range tasks {
		total += t.Weight
	}
	return total
}
