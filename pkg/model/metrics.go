package model

import "time"

// Operation labels for sync commands. The label only affects logging and
// bookkeeping; transfer semantics come from the concrete source and
// destination paths.
const (
	OpLoad = "load"
	OpSave = "save"
)

// MetricsRow is one append-only entry in a scope's metrics ledger.
type MetricsRow struct {
	Timestamp    time.Time `json:"timestamp"`
	CacheName    string    `json:"cache_name"`
	Operation    string    `json:"operation"`
	TotalBytes   int64     `json:"total_bytes"`
	LiteralBytes int64     `json:"literal_bytes"`
	MatchedBytes int64     `json:"matched_bytes"`
	FileCount    int64     `json:"file_count"`
	DurationMS   int64     `json:"duration_ms"`
}
