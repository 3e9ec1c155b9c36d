package model

import "time"

// OpStatus is the outcome recorded for the last command of a scope.
type OpStatus string

const (
	StatusSuccess OpStatus = "success"
	StatusDryRun  OpStatus = "dry-run"
	StatusFailure OpStatus = "failure"
	// StatusUnknown is reported when no state record exists yet.
	StatusUnknown OpStatus = "unknown"
)

// StateRecord is the per-scope last-operation record, overwritten once per
// command at <stateDir>/<scope>-state.json.
type StateRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	Status     OpStatus  `json:"status"`
	TotalBytes int64     `json:"total_bytes"`
	PID        int       `json:"pid"`
}
