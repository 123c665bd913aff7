package model

import "time"

// Sync run outcomes.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Sync run kinds (one run mirrors one record kind).
const (
	RunKindItems  = "items"
	RunKindOrders = "orders"
)

// SyncRun records one execution of the fetch/normalize/reconcile
// pipeline for auditing, without replaying the run.
type SyncRun struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}
