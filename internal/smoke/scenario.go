package smoke

import "net/url"

// Kind selects how a scenario exercises its query.
type Kind int

const (
	// Single issues one timed request and records time, size, and status.
	Single Kind = iota
	// ColdWarm issues the same request twice in succession and records the
	// two elapsed times, surfacing server-side cache behavior.
	ColdWarm
	// Concurrent issues the request ten times in parallel and records only
	// the aggregate wall-clock span.
	Concurrent
)

// FanOut is the fixed number of parallel requests in a Concurrent scenario.
const FanOut = 10

// Scenario is one entry of the fixed smoke suite.
type Scenario struct {
	Name   string
	Kind   Kind
	Path   string
	Params url.Values
}

// Scenarios returns the six suite scenarios in their fixed order. The query
// shapes mirror the historical quick-test script for ws-availability.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name: "Test 1: Small Query",
			Kind: Single,
			Path: "/query",
			Params: url.Values{
				"net":   {"NL"},
				"sta":   {"HGN"},
				"start": {"2023-01-01"},
				"end":   {"2023-01-07"},
			},
		},
		{
			Name: "Test 2: Medium Query",
			Kind: Single,
			Path: "/query",
			Params: url.Values{
				"net":   {"NL"},
				"start": {"2023-01-01"},
				"end":   {"2023-02-01"},
			},
		},
		{
			Name: "Test 3: Extent Query",
			Kind: Single,
			Path: "/extent",
			Params: url.Values{
				"net":   {"NA"},
				"start": {"2023-02-01"},
			},
		},
		{
			Name: "Test 4: JSON Format",
			Kind: Single,
			Path: "/query",
			Params: url.Values{
				"net":    {"NL"},
				"start":  {"2023-01-01"},
				"format": {"json"},
			},
		},
		{
			Name: "Test 5: Cache Test",
			Kind: ColdWarm,
			Path: "/query",
			Params: url.Values{
				"net":   {"NL"},
				"sta":   {"HGN"},
				"start": {"2023-01-01"},
			},
		},
		{
			Name: "Test 6: Concurrent Requests",
			Kind: Concurrent,
			Path: "/query",
			Params: url.Values{
				"net":   {"NL"},
				"start": {"2023-01-01"},
			},
		},
	}
}
