package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nobroker_watchdog/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordSeen_Idempotent(t *testing.T) {
	store := openTestStore(t)

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := store.RecordSeen("p1", "fp-a", first); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	if err := store.RecordSeen("p1", "fp-a", first.Add(time.Hour)); err != nil {
		t.Fatalf("record seen again: %v", err)
	}

	rec, err := store.GetSeen("p1")
	if err != nil || rec == nil {
		t.Fatalf("get seen: rec=%v err=%v", rec, err)
	}
	if !rec.FirstSeen.Equal(first) {
		t.Fatalf("first_seen must survive the upsert: got %v want %v", rec.FirstSeen, first)
	}

	count, err := store.SeenCount()
	if err != nil || count != 1 {
		t.Fatalf("expected one record, got %d (err=%v)", count, err)
	}
}

func TestRecordSeen_FingerprintTracksLatest(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	if err := store.RecordSeen("p1", "fp-a", now); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	if err := store.RecordSeen("p1", "fp-b", now); err != nil {
		t.Fatalf("record seen: %v", err)
	}

	rec, err := store.GetSeen("p1")
	if err != nil || rec == nil {
		t.Fatalf("get seen: rec=%v err=%v", rec, err)
	}
	if rec.Fingerprint != "fp-b" {
		t.Fatalf("fingerprint must track the latest content, got %q", rec.Fingerprint)
	}
}

func TestHasSeen(t *testing.T) {
	store := openTestStore(t)

	seen, err := store.HasSeen("p1")
	if err != nil || seen {
		t.Fatalf("unknown id must not be seen (got %v, err=%v)", seen, err)
	}

	if err := store.RecordSeen("p1", "fp-a", time.Now()); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	seen, err = store.HasSeen("p1")
	if err != nil || !seen {
		t.Fatalf("recorded id must be seen (got %v, err=%v)", seen, err)
	}
}

func TestAlreadyAlerted(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	alerted, err := store.AlreadyAlerted("p1", "fp-a")
	if err != nil || alerted {
		t.Fatalf("unknown id must not be alerted (got %v, err=%v)", alerted, err)
	}

	if err := store.RecordSeen("p1", "fp-a", now); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	alerted, _ = store.AlreadyAlerted("p1", "fp-a")
	if alerted {
		t.Fatalf("seen but not alerted must report false")
	}

	if err := store.MarkAlerted("p1", now); err != nil {
		t.Fatalf("mark alerted: %v", err)
	}
	alerted, _ = store.AlreadyAlerted("p1", "fp-a")
	if !alerted {
		t.Fatalf("alerted id with same fingerprint must report true")
	}

	// Changed content is not-alerted again.
	alerted, _ = store.AlreadyAlerted("p1", "fp-b")
	if alerted {
		t.Fatalf("changed fingerprint must report not-alerted")
	}
}

func TestMarkAlerted_UnknownID(t *testing.T) {
	store := openTestStore(t)
	err := store.MarkAlerted("nope", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	now := time.Now()
	if err := store.RecordSeen("p1", "fp-a", now); err != nil {
		t.Fatalf("record seen: %v", err)
	}
	if err := store.MarkAlerted("p1", now); err != nil {
		t.Fatalf("mark alerted: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	alerted, err := reopened.AlreadyAlerted("p1", "fp-a")
	if err != nil || !alerted {
		t.Fatalf("alerted state must survive a restart (got %v, err=%v)", alerted, err)
	}
}

func TestScanRuns(t *testing.T) {
	store := openTestStore(t)

	last, err := store.GetLastRun()
	if err != nil || last != nil {
		t.Fatalf("fresh store must have no runs (got %v, err=%v)", last, err)
	}

	started := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	run := &models.ScanRun{StartedAt: started, Status: models.RunStatusRunning}
	id, err := store.CreateRun(run)
	if err != nil || id == 0 {
		t.Fatalf("create run: id=%d err=%v", id, err)
	}

	finished := started.Add(time.Minute)
	run.ID = id
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.CardsSeen = 12
	run.NewListings = 3
	run.AlertsSent = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	last, err = store.GetLastRun()
	if err != nil || last == nil {
		t.Fatalf("get last run: run=%v err=%v", last, err)
	}
	if last.Status != models.RunStatusCompleted || last.CardsSeen != 12 || last.AlertsSent != 2 {
		t.Fatalf("unexpected last run: %+v", last)
	}
	if last.FinishedAt == nil {
		t.Fatalf("finished_at must round-trip")
	}
}
