package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"nobroker_watchdog/models"
)

// PostgresArchive mirrors alerted listings and scan runs to Postgres for
// querying and history. The SQLite ledger remains the source of truth for
// dedup; archive failures never change a match decision.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, connString string) (*PostgresArchive, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	archive := &PostgresArchive{pool: pool}
	if err := archive.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return archive, nil
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}

func (a *PostgresArchive) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerted_listings (
		id UUID PRIMARY KEY,
		listing_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		title TEXT,
		url TEXT,
		area TEXT,
		city TEXT,
		price_monthly INTEGER,
		score INTEGER,
		score_breakdown JSONB,
		raw JSONB,
		alerted_at TIMESTAMPTZ NOT NULL,
		UNIQUE (listing_id, fingerprint)
	);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		cards_seen INTEGER,
		new_listings INTEGER,
		alerts_sent INTEGER,
		errors_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_alerted_listing ON alerted_listings(listing_id);
	CREATE INDEX IF NOT EXISTS idx_archive_runs ON scan_runs(started_at DESC);
	`
	_, err := a.pool.Exec(ctx, schema)
	return err
}

// RecordAlert archives one dispatched alert. Re-archiving the same
// listing/fingerprint pair is a no-op.
func (a *PostgresArchive) RecordAlert(ctx context.Context, payload *models.AlertPayload, fingerprint string) error {
	raw, err := json.Marshal(payload.Listing)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	breakdown, err := json.Marshal(payload.Score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO alerted_listings (
			id, listing_id, fingerprint, title, url, area, city,
			price_monthly, score, score_breakdown, raw, alerted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (listing_id, fingerprint) DO NOTHING`,
		uuid.New(), payload.Listing.ID, fingerprint,
		payload.Listing.Title, payload.Listing.URL,
		payload.Listing.AreaDisplay, payload.Listing.City,
		payload.Listing.PriceMonthly, payload.Score.Overall,
		breakdown, raw, payload.CreatedAt.UTC())
	return err
}

func (a *PostgresArchive) CreateRun(ctx context.Context, run *models.ScanRun) (int64, error) {
	var id int64
	err := a.pool.QueryRow(ctx, `
		INSERT INTO scan_runs (started_at, status, cards_seen, new_listings, alerts_sent, errors_count)
		VALUES ($1, $2, 0, 0, 0, 0)
		RETURNING id`,
		run.StartedAt, run.Status).Scan(&id)
	return id, err
}

func (a *PostgresArchive) UpdateRun(ctx context.Context, id int64, run *models.ScanRun) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE scan_runs SET finished_at = $1, status = $2, cards_seen = $3,
			new_listings = $4, alerts_sent = $5, errors_count = $6
		WHERE id = $7`,
		run.FinishedAt, run.Status, run.CardsSeen,
		run.NewListings, run.AlertsSent, run.ErrorsCount, id)
	return err
}
