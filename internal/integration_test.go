package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/availprobe/internal/probe"
	"github.com/hazz-dev/availprobe/internal/scheduler"
	"github.com/hazz-dev/availprobe/internal/server"
	"github.com/hazz-dev/availprobe/internal/smoke"
	"github.com/hazz-dev/availprobe/internal/storage"
)

// TestIntegration_FullFlow verifies the complete pipeline:
// probe → smoke suite → storage → API
func TestIntegration_FullFlow(t *testing.T) {
	// 1. Start a fake ws-availability service
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/version":
			w.Write([]byte("1.0.0"))
		case "/query", "/extent":
			w.Write([]byte("NL|HGN||BHZ|2023-01-01T00:00:00|2023-01-07T00:00:00\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer target.Close()

	// 2. Open in-memory SQLite
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	// 3. Run the smoke suite against the fake service
	client := probe.New(target.URL, 5*time.Second)
	suite := smoke.New(client, nil)

	ctx := context.Background()
	outcome, err := suite.Run(ctx, io.Discard)
	if err != nil {
		t.Fatalf("suite run: %v", err)
	}
	if len(outcome.Sections) != 6 {
		t.Fatalf("expected 6 sections, got %d", len(outcome.Sections))
	}

	// 4. Persist the outcome the way the smoke command does
	runID, err := db.InsertRun(ctx, "smoke", outcome.Target, outcome.StartedAt)
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	for _, section := range outcome.Sections {
		for _, r := range section.Results {
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
				t.Fatalf("InsertSample: %v", err)
			}
		}
	}
	if err := db.FinishRun(ctx, runID, time.Now(), true); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	// 5. Build API server
	apiServer := server.New(db, target.URL, nil)

	// 6. GET /api/health
	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		var resp map[string]string
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["status"] != "ok" {
			t.Errorf("expected status 'ok', got %q", resp["status"])
		}
	})

	// 7. GET /api/runs: the recorded run appears
	t.Run("list runs", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/runs", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data struct {
				Runs []struct {
					ID   string `json:"id"`
					Kind string `json:"kind"`
					OK   bool   `json:"ok"`
				} `json:"runs"`
				Total int `json:"total"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)

		if resp.Data.Total != 1 || len(resp.Data.Runs) != 1 {
			t.Fatalf("expected 1 run, got %+v", resp.Data)
		}
		if resp.Data.Runs[0].ID != runID {
			t.Errorf("expected run %q, got %q", runID, resp.Data.Runs[0].ID)
		}
		if resp.Data.Runs[0].Kind != "smoke" || !resp.Data.Runs[0].OK {
			t.Errorf("unexpected run summary: %+v", resp.Data.Runs[0])
		}
	})

	// 8. GET /api/runs/{id}: samples carry scenario labels
	t.Run("get run detail", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/runs/"+runID, nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data struct {
				ID      string `json:"id"`
				Samples []struct {
					Label  string `json:"label"`
					Status int    `json:"status"`
				} `json:"samples"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)

		if resp.Data.ID != runID {
			t.Errorf("expected run %q, got %q", runID, resp.Data.ID)
		}
		if len(resp.Data.Samples) == 0 {
			t.Fatal("expected recorded samples")
		}
		if resp.Data.Samples[0].Label != "Test 1: Small Query" {
			t.Errorf("expected first sample from first scenario, got %q", resp.Data.Samples[0].Label)
		}
	})

	// 9. GET /api/stats: per-label aggregates over the run
	t.Run("label stats", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stats?kind=smoke", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data struct {
				Stats []struct {
					Label string `json:"Label"`
					Count int    `json:"Count"`
				} `json:"stats"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if len(resp.Data.Stats) == 0 {
			t.Error("expected per-label stats")
		}
	})
}

// TestIntegration_WatchLoop runs the suite through the scheduler the way
// watch mode does.
func TestIntegration_WatchLoop(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer target.Close()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	client := probe.New(target.URL, 5*time.Second)
	suite := smoke.New(client, nil)

	run := func(ctx context.Context) error {
		outcome, err := suite.Run(ctx, io.Discard)
		if err != nil {
			return err
		}
		runID, err := db.InsertRun(ctx, "smoke", outcome.Target, outcome.StartedAt)
		if err != nil {
			return err
		}
		return db.FinishRun(ctx, runID, time.Now(), true)
	}

	sched := scheduler.New(time.Hour, run, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	// The first run fires immediately; wait for it to land in the DB.
	deadline := time.Now().Add(5 * time.Second)
	var recorded []storage.Run
	for time.Now().Before(deadline) {
		runs, _, err := db.RecentRuns(ctx, 10, 0)
		if err != nil {
			t.Fatalf("RecentRuns: %v", err)
		}
		if len(runs) > 0 {
			recorded = runs
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(recorded) == 0 {
		t.Fatal("no run recorded after 5s")
	}
	if !recorded[0].OK {
		t.Errorf("expected recorded run to be ok: %+v", recorded[0])
	}

	cancel()
	sched.Wait()

	// DB is still usable after shutdown.
	if _, _, err := db.RecentRuns(context.Background(), 1, 0); err != nil {
		t.Errorf("DB unusable after shutdown: %v", err)
	}
}
