package model

import "time"

// TimerInfo describes a scope's bound systemd timer. Trigger holds either a
// calendar expression or a relative-interval expression, whichever the unit
// configures. Last is zero for a freshly installed timer that has never
// fired.
type TimerInfo struct {
	Unit    string    `json:"unit"`
	Trigger string    `json:"trigger"`
	Next    time.Time `json:"next,omitempty"`
	Last    time.Time `json:"last,omitempty"`
}
