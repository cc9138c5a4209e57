package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScanRun records one fetch+match cycle.
type ScanRun struct {
	ID          int64      `json:"id" db:"id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	Status      RunStatus  `json:"status" db:"status"`
	CardsSeen   int        `json:"cards_seen" db:"cards_seen"`
	NewListings int        `json:"new_listings" db:"new_listings"`
	AlertsSent  int        `json:"alerts_sent" db:"alerts_sent"`
	ErrorsCount int        `json:"errors_count" db:"errors_count"`
}

// CycleStats summarizes one pipeline cycle for logging and run records.
type CycleStats struct {
	CardsSeen   int
	NewListings int
	AlertsSent  int
	Skipped     int
	Errors      int
}
