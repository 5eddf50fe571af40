package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazz-dev/availprobe/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestRun(t *testing.T, db *storage.DB, kind string, startedAt time.Time) string {
	t.Helper()
	id, err := db.InsertRun(context.Background(), kind, "http://localhost:9001", startedAt)
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	return id
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	// If we can insert, schema is correct.
	insertTestRun(t, db, "smoke", time.Now().UTC())
}

func TestInsertRun_RejectsUnknownKind(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertRun(context.Background(), "stress", "http://localhost:9001", time.Now()); err == nil {
		t.Error("expected error for unknown run kind")
	}
}

func TestInsertRun_And_GetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	id := insertTestRun(t, db, "smoke", started)

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected a run, got nil")
	}
	if got.Kind != "smoke" {
		t.Errorf("expected kind 'smoke', got %q", got.Kind)
	}
	if got.Target != "http://localhost:9001" {
		t.Errorf("expected stored target, got %q", got.Target)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Errorf("expected unfinished run, got finished_at %v", got.FinishedAt)
	}
	if got.OK {
		t.Error("expected new run to not be ok yet")
	}
}

func TestGetRun_ReturnsNilWhenMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown run, got %+v", got)
	}
}

func TestFinishRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id := insertTestRun(t, db, "bench", time.Now().UTC())
	finished := time.Now().UTC().Truncate(time.Millisecond)
	if err := db.FinishRun(ctx, id, finished, true); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("expected finished_at %v, got %v", finished, got.FinishedAt)
	}
	if !got.OK {
		t.Error("expected run to be marked ok")
	}
}

func TestInsertSample_And_RunSamples(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id := insertTestRun(t, db, "smoke", time.Now().UTC())
	samples := []storage.Sample{
		{RunID: id, Label: "Test 1: Small Query", ElapsedMs: 120, SizeBytes: 2048, Status: 200, RecordedAt: time.Now().UTC()},
		{RunID: id, Label: "Test 3: Extent Query", ElapsedMs: 340, SizeBytes: 0, Status: 503, Error: "", RecordedAt: time.Now().UTC()},
	}
	for _, s := range samples {
		if err := db.InsertSample(ctx, s); err != nil {
			t.Fatalf("InsertSample: %v", err)
		}
	}

	got, err := db.RunSamples(ctx, id)
	if err != nil {
		t.Fatalf("RunSamples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	// Insertion order preserved.
	if got[0].Label != "Test 1: Small Query" || got[1].Label != "Test 3: Extent Query" {
		t.Errorf("samples out of order: %q, %q", got[0].Label, got[1].Label)
	}
	if got[0].ElapsedMs != 120 || got[0].SizeBytes != 2048 || got[0].Status != 200 {
		t.Errorf("sample fields not round-tripped: %+v", got[0])
	}
}

func TestInsertSample_RequiresExistingRun(t *testing.T) {
	db := openTestDB(t)
	s := storage.Sample{RunID: "no-such-run", Label: "x", ElapsedMs: 1, RecordedAt: time.Now()}
	if err := db.InsertSample(context.Background(), s); err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}

func TestRecentRuns_Pagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		insertTestRun(t, db, "smoke", base.Add(time.Duration(i)*time.Second))
	}

	runs, total, err := db.RecentRuns(ctx, 4, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(runs) != 4 {
		t.Errorf("expected 4 runs, got %d", len(runs))
	}
	// Newest first.
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("runs not ordered newest first at index %d", i)
		}
	}

	// Second page
	runs2, total2, err := db.RecentRuns(ctx, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if total2 != 10 {
		t.Errorf("expected total 10 on page 2, got %d", total2)
	}
	if len(runs2) != 4 {
		t.Errorf("expected 4 runs on page 2, got %d", len(runs2))
	}
	if runs2[0].ID == runs[0].ID {
		t.Error("expected page 2 to start after page 1")
	}
}

func TestRecentRuns_EmptyDB(t *testing.T) {
	db := openTestDB(t)
	runs, total, err := db.RecentRuns(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if total != 0 {
		t.Errorf("expected total 0, got %d", total)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}
}

func TestStatsByLabel_AggregatesRecentRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC()
	run1 := insertTestRun(t, db, "smoke", base)
	run2 := insertTestRun(t, db, "smoke", base.Add(time.Second))

	insert := func(runID, label string, elapsed int64, status int, errMsg string) {
		t.Helper()
		s := storage.Sample{
			RunID: runID, Label: label, ElapsedMs: elapsed,
			Status: status, Error: errMsg, RecordedAt: time.Now().UTC(),
		}
		if err := db.InsertSample(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	insert(run1, "Test 1: Small Query", 100, 200, "")
	insert(run2, "Test 1: Small Query", 300, 200, "")
	insert(run2, "Test 3: Extent Query", 50, 503, "")
	insert(run2, "Test 4: JSON Format", 20, 0, "connection refused")

	stats, err := db.StatsByLabel(ctx, "smoke", 20)
	if err != nil {
		t.Fatalf("StatsByLabel: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(stats))
	}

	byLabel := make(map[string]storage.LabelStats)
	for _, ls := range stats {
		byLabel[ls.Label] = ls
	}

	small := byLabel["Test 1: Small Query"]
	if small.Count != 2 {
		t.Errorf("expected 2 samples for small query, got %d", small.Count)
	}
	if small.AvgMs != 200 {
		t.Errorf("expected avg 200ms, got %v", small.AvgMs)
	}
	if small.MaxMs != 300 {
		t.Errorf("expected max 300ms, got %d", small.MaxMs)
	}
	if small.Failures != 0 {
		t.Errorf("expected 0 failures, got %d", small.Failures)
	}

	if byLabel["Test 3: Extent Query"].Failures != 1 {
		t.Error("expected 5xx sample to count as failure")
	}
	if byLabel["Test 4: JSON Format"].Failures != 1 {
		t.Error("expected transport error sample to count as failure")
	}
}

func TestStatsByLabel_FiltersByKind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	run := insertTestRun(t, db, "bench", time.Now().UTC())
	s := storage.Sample{RunID: run, Label: "/query", ElapsedMs: 10, Status: 200, RecordedAt: time.Now().UTC()}
	if err := db.InsertSample(ctx, s); err != nil {
		t.Fatal(err)
	}

	stats, err := db.StatsByLabel(ctx, "smoke", 20)
	if err != nil {
		t.Fatalf("StatsByLabel: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no smoke stats, got %d", len(stats))
	}
}

func TestClose(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
