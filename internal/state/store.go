// Package state persists the per-scope last-operation record.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tiersync/tiersync/pkg/fsutil"
	"github.com/tiersync/tiersync/pkg/model"
)

// Store reads and overwrites one scope's state record.
type Store struct {
	path string
}

// New creates a store for the given state record path.
func New(path string) *Store {
	return &Store{path: path}
}

// Save overwrites the state record atomically.
func (s *Store) Save(rec model.StateRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return fsutil.AtomicWrite(s.path, data, 0644)
}

// Load returns the last state record. A missing file is not an error: the
// scope simply has no history yet and the record reports status "unknown".
func (s *Store) Load() (model.StateRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.StateRecord{Status: model.StatusUnknown}, nil
		}
		return model.StateRecord{}, fmt.Errorf("read state: %w", err)
	}

	var rec model.StateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.StateRecord{}, fmt.Errorf("parse state: %w", err)
	}
	return rec, nil
}
