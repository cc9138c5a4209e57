package models

import "time"

// SeenRecord is one row of the dedup ledger. Created the first time a
// listing id reaches a match decision; never deleted. LastAlerted stays
// nil until a notification for the listing actually goes out.
type SeenRecord struct {
	ListingID   string     `json:"listing_id" db:"listing_id"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
	FirstSeen   time.Time  `json:"first_seen" db:"first_seen"`
	LastAlerted *time.Time `json:"last_alerted" db:"last_alerted"`
}
