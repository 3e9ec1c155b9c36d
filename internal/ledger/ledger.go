// Package ledger maintains the per-scope append-only metrics ledger. The
// ledger is a CSV file created with a header on first append; rows are only
// written by the scope's lock holder, with an flock held for the append so a
// reader never observes a torn row.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/tiersync/tiersync/pkg/model"
)

var columns = []string{
	"timestamp",
	"cache_name",
	"operation",
	"total_bytes",
	"literal_bytes",
	"matched_bytes",
	"file_count",
	"duration_ms",
}

// Ledger appends and reads metrics rows for one scope.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New creates a ledger handle for the given path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Append adds one row, creating the file with a header when absent.
func (l *Ledger) Append(row model.MetricsRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("flock ledger: %w", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(encodeRow(row)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return file.Sync()
}

// Rows returns all rows in append order. A missing ledger yields no rows;
// malformed lines are skipped, since metrics are diagnostic.
func (l *Ledger) Rows() ([]model.MetricsRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var rows []model.MetricsRow
	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == columns[0] {
			continue // header
		}
		row, ok := decodeRow(record)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func encodeRow(row model.MetricsRow) []string {
	return []string{
		row.Timestamp.UTC().Format(time.RFC3339),
		row.CacheName,
		row.Operation,
		strconv.FormatInt(row.TotalBytes, 10),
		strconv.FormatInt(row.LiteralBytes, 10),
		strconv.FormatInt(row.MatchedBytes, 10),
		strconv.FormatInt(row.FileCount, 10),
		strconv.FormatInt(row.DurationMS, 10),
	}
}

func decodeRow(record []string) (model.MetricsRow, bool) {
	if len(record) != len(columns) {
		return model.MetricsRow{}, false
	}
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return model.MetricsRow{}, false
	}

	ints := make([]int64, 5)
	for i, field := range record[3:] {
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return model.MetricsRow{}, false
		}
		ints[i] = v
	}

	return model.MetricsRow{
		Timestamp:    ts,
		CacheName:    record[1],
		Operation:    record[2],
		TotalBytes:   ints[0],
		LiteralBytes: ints[1],
		MatchedBytes: ints[2],
		FileCount:    ints[3],
		DurationMS:   ints[4],
	}, true
}
