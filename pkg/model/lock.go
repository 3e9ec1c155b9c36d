package model

import "time"

// LockRecord is stored at <runDir>/<scope>.lock while a command runs.
type LockRecord struct {
	Scope      Scope     `json:"scope"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Age returns how long the lock has been held.
func (l *LockRecord) Age(now time.Time) time.Duration {
	return now.Sub(l.AcquiredAt)
}

// LockState represents the current state of a scope lock.
type LockState string

const (
	LockStateFree  LockState = "free"
	LockStateHeld  LockState = "held"
	LockStateStale LockState = "stale"
)
