package bench

import (
	"sort"
	"time"
)

// Stats summarizes the elapsed times and sizes of a benchmark run.
type Stats struct {
	Iterations int
	Avg        time.Duration
	Min        time.Duration
	Max        time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	AvgSize    float64
	// ThroughputKBs is average size over average time, in KB/s.
	ThroughputKBs float64
}

// Summarize computes aggregate statistics over per-iteration measurements.
// times must be non-empty; sizes must have the same length.
func Summarize(times []time.Duration, sizes []int64) Stats {
	st := Stats{
		Iterations: len(times),
		Min:        times[0],
		Max:        times[0],
	}

	var totalTime time.Duration
	var totalSize int64
	for i, t := range times {
		totalTime += t
		totalSize += sizes[i]
		if t < st.Min {
			st.Min = t
		}
		if t > st.Max {
			st.Max = t
		}
	}
	st.Avg = totalTime / time.Duration(len(times))
	st.AvgSize = float64(totalSize) / float64(len(sizes))

	sorted := make([]time.Duration, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	st.P50 = sorted[len(sorted)/2]
	st.P95 = sorted[int(float64(len(sorted))*0.95)]
	st.P99 = sorted[int(float64(len(sorted))*0.99)]

	if st.Avg > 0 {
		st.ThroughputKBs = st.AvgSize / st.Avg.Seconds() / 1024
	}
	return st
}
