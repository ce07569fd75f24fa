package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aegis/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordJobUpsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := history.JobRecord{ID: "job-1", Kind: history.KindFile, Input: "/in.mp4", Status: history.JobRunning, StartedAt: started}
	if err := store.RecordJob(ctx, rec); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	rec.Status = history.JobCompleted
	rec.Output = "/out.mp4"
	rec.FinishedAt = started.Add(90 * time.Second)
	rec.MutedSeconds = 2.5
	rec.BlurRegions = 4
	if err := store.RecordJob(ctx, rec); err != nil {
		t.Fatalf("RecordJob update: %v", err)
	}

	jobs, err := store.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	got := jobs[0]
	if got.Status != history.JobCompleted || got.Output != "/out.mp4" || got.BlurRegions != 4 || got.MutedSeconds != 2.5 {
		t.Fatalf("unexpected job %+v", got)
	}
	if got.Elapsed() != 90*time.Second {
		t.Fatalf("elapsed = %s", got.Elapsed())
	}
}

func TestRecentJobsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := history.JobRecord{ID: id, Kind: history.KindStream, Input: id, Status: history.JobCompleted, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.RecordJob(ctx, rec); err != nil {
			t.Fatalf("RecordJob(%s): %v", id, err)
		}
	}
	jobs, err := store.RecentJobs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestRecordChunk(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.RecordJob(ctx, history.JobRecord{ID: "s1", Kind: history.KindStream, Input: "in", Status: history.JobRunning}); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	for _, rec := range []history.ChunkRecord{
		{JobID: "s1", ChunkID: 2, StartTS: 20, Duration: 10, Status: history.ChunkDropped, Error: "missing video result"},
		{JobID: "s1", ChunkID: 1, StartTS: 10, Duration: 10, Status: history.ChunkEmitted, Output: "/o/1.mp4", MutedSeconds: 1.5},
	} {
		if err := store.RecordChunk(ctx, rec); err != nil {
			t.Fatalf("RecordChunk(%d): %v", rec.ChunkID, err)
		}
	}
	chunks, err := store.Chunks(ctx, "s1")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 2 || chunks[0].ChunkID != 1 || chunks[1].Status != history.ChunkDropped {
		t.Fatalf("chunks = %+v", chunks)
	}
	if chunks[1].Error != "missing video result" || chunks[0].Output != "/o/1.mp4" {
		t.Fatalf("chunks = %+v", chunks)
	}
}

func TestRecordChunkRequiresJob(t *testing.T) {
	store := openStore(t)
	err := store.RecordChunk(context.Background(), history.ChunkRecord{JobID: "ghost", ChunkID: 1, Status: history.ChunkEmitted})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RecordJob(context.Background(), history.JobRecord{ID: "x", Kind: history.KindFile, Input: "in", Status: history.JobCopied}); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	jobs, err := reopened.RecentJobs(context.Background(), 0)
	if err != nil || len(jobs) != 1 || jobs[0].Status != history.JobCopied {
		t.Fatalf("jobs=%+v err=%v", jobs, err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := history.Open(" "); err == nil || errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("err = %v", err)
	}
}
