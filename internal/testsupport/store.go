package testsupport

import (
	"context"
	"testing"
	"time"

	"aegis/internal/config"
	"aegis/internal/history"
)

// MustOpenHistory opens the journal configured in cfg and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordFileJob inserts a finished file job for tests.
func RecordFileJob(t testing.TB, store *history.Store, id, status string, started time.Time) history.JobRecord {
	t.Helper()

	rec := history.JobRecord{
		ID:         id,
		Kind:       history.KindFile,
		Input:      "/media/" + id + ".mp4",
		Output:     "/out/" + id + ".mp4",
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	if err := store.RecordJob(context.Background(), rec); err != nil {
		t.Fatalf("store.RecordJob: %v", err)
	}
	return rec
}
