package smoke

import (
	"fmt"
	"io"
	"os"
	"time"
)

// OpenResults truncates (or creates) the results file at path so that each
// run starts with a fresh transcript.
func OpenResults(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening results file %q: %w", path, err)
	}
	return f, nil
}

func writeHeader(w io.Writer, target string, at time.Time) {
	fmt.Fprintf(w, "ws-availability smoke test - %s\n", at.Format(time.RFC1123))
	fmt.Fprintf(w, "Target: %s\n\n", target)
}

func writeSection(w io.Writer, section Section) {
	fmt.Fprintln(w, section.Scenario.Name)

	switch section.Scenario.Kind {
	case Single:
		r := section.Results[0]
		fmt.Fprintf(w, "Time: %.3fs\n", r.Elapsed.Seconds())
		fmt.Fprintf(w, "Size: %d bytes\n", r.Size)
		fmt.Fprintf(w, "Status: %d\n", r.StatusCode)
		if r.Error != "" {
			fmt.Fprintf(w, "Error: %s\n", r.Error)
		}

	case ColdWarm:
		fmt.Fprintf(w, "Time (cold): %.3fs\n", section.Results[0].Elapsed.Seconds())
		fmt.Fprintf(w, "Time (warm): %.3fs\n", section.Results[1].Elapsed.Seconds())

	case Concurrent:
		fmt.Fprintf(w, "Total time for %d concurrent requests: %.3fs\n",
			FanOut, section.Aggregate.Seconds())
	}
	fmt.Fprintln(w)
}
