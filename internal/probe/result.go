package probe

import "time"

// Result is the measured outcome of a single timed request. Transport errors
// are recorded as data, not returned as Go errors: past the version
// precondition every probe is purely observational.
type Result struct {
	Label      string
	URL        string
	Elapsed    time.Duration
	Size       int64
	StatusCode int
	Error      string
	FetchedAt  time.Time
}

// OK reports whether the probe completed transport and got a 2xx status.
func (r Result) OK() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}
