package storage

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"nobroker_watchdog/models"
)

// ErrNotFound is returned when an operation targets a listing id with no
// SeenRecord. MarkAlerted requires RecordSeen to have run first.
var ErrNotFound = errors.New("storage: seen record not found")

// SQLiteStore is the durable dedup ledger plus scan-run bookkeeping.
// All writes go through a single mutex: one daemon process, one writer.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_listings (
		listing_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		first_seen DATETIME NOT NULL,
		last_alerted DATETIME
	);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		cards_seen INTEGER,
		new_listings INTEGER,
		alerts_sent INTEGER,
		errors_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_seen_alerted ON seen_listings(last_alerted) WHERE last_alerted IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scan_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// HasSeen reports whether a SeenRecord exists for the listing id.
func (s *SQLiteStore) HasSeen(listingID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM seen_listings WHERE listing_id = ?`, listingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// GetSeen returns the SeenRecord for a listing id, or nil when absent.
func (s *SQLiteStore) GetSeen(listingID string) (*models.SeenRecord, error) {
	row := s.db.QueryRow(`
		SELECT listing_id, fingerprint, first_seen, last_alerted
		FROM seen_listings WHERE listing_id = ?`, listingID)

	var rec models.SeenRecord
	var lastAlerted sql.NullTime
	err := row.Scan(&rec.ListingID, &rec.Fingerprint, &rec.FirstSeen, &lastAlerted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastAlerted.Valid {
		rec.LastAlerted = &lastAlerted.Time
	}
	return &rec, nil
}

// AlreadyAlerted reports whether the listing id has a non-null
// last-alerted timestamp for this exact fingerprint. A changed
// fingerprint (price drop, rewritten title) is treated as not-alerted.
func (s *SQLiteStore) AlreadyAlerted(listingID, fingerprint string) (bool, error) {
	rec, err := s.GetSeen(listingID)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.LastAlerted != nil && rec.Fingerprint == fingerprint, nil
}

// RecordSeen upserts the SeenRecord for a listing id. Idempotent:
// first_seen is set once and never overwritten; the fingerprint tracks
// the latest observed content.
func (s *SQLiteStore) RecordSeen(listingID, fingerprint string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO seen_listings (listing_id, fingerprint, first_seen, last_alerted)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(listing_id) DO UPDATE SET
			fingerprint = excluded.fingerprint`,
		listingID, fingerprint, t.UTC())
	return err
}

// MarkAlerted stamps last_alerted for an existing SeenRecord. Returns
// ErrNotFound when RecordSeen has not run for the id.
func (s *SQLiteStore) MarkAlerted(listingID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE seen_listings SET last_alerted = ? WHERE listing_id = ?`,
		t.UTC(), listingID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeenCount returns the size of the dedup ledger.
func (s *SQLiteStore) SeenCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM seen_listings`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CreateRun(run *models.ScanRun) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		INSERT INTO scan_runs (started_at, status, cards_seen, new_listings, alerts_sent, errors_count)
		VALUES (?, ?, 0, 0, 0, 0)`,
		run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE scan_runs SET finished_at = ?, status = ?, cards_seen = ?,
			new_listings = ?, alerts_sent = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.CardsSeen,
		run.NewListings, run.AlertsSent, run.ErrorsCount, run.ID)
	return err
}

// GetLastRun returns the most recently started run, or nil when the
// daemon has never completed a cycle.
func (s *SQLiteStore) GetLastRun() (*models.ScanRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, status, cards_seen, new_listings, alerts_sent, errors_count
		FROM scan_runs ORDER BY started_at DESC LIMIT 1`)

	var run models.ScanRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status,
		&run.CardsSeen, &run.NewListings, &run.AlertsSent, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
