// Package lockfile provides the per-scope exclusive advisory lock.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/logging"
	"github.com/tiersync/tiersync/pkg/model"
)

// Stale-lock thresholds. An orphaned lock left behind by an unclean shutdown
// should be reclaimed quickly right after boot; later on, a long age is
// required so a legitimately slow holder that crashed is not raced.
const (
	bootWindow       = 5 * time.Minute
	staleDuringBoot  = 60 * time.Second
	staleSteadyState = 300 * time.Second
)

// Probes abstracts host introspection so tests can simulate boot windows and
// dead holders.
type Probes struct {
	Uptime   func() (time.Duration, error)
	PIDAlive func(pid int) bool
	Now      func() time.Time
}

func defaultProbes() Probes {
	return Probes{
		Uptime: func() (time.Duration, error) {
			secs, err := host.Uptime()
			if err != nil {
				return 0, err
			}
			return time.Duration(secs) * time.Second, nil
		},
		PIDAlive: func(pid int) bool {
			alive, err := process.PidExists(int32(pid))
			return err == nil && alive
		},
		Now: time.Now,
	}
}

// Manager handles exclusive per-scope lock operations.
type Manager struct {
	path   string
	scope  model.Scope
	probes Probes
	mu     sync.Mutex
}

// NewManager creates a lock manager for one scope.
func NewManager(path string, scope model.Scope) *Manager {
	return NewManagerWithProbes(path, scope, defaultProbes())
}

// NewManagerWithProbes creates a lock manager with explicit host probes.
func NewManagerWithProbes(path string, scope model.Scope, probes Probes) *Manager {
	if probes.Now == nil {
		probes.Now = time.Now
	}
	return &Manager{path: path, scope: scope, probes: probes}
}

// Acquire attempts a non-blocking exclusive acquisition. A lock held by a
// live process is fatal. A lock whose holder is dead is reclaimed once its
// age exceeds the boot-aware staleness threshold, then acquisition is
// retried exactly once.
func (m *Manager) Acquire() (*model.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.tryCreate()
	if err == nil {
		return rec, nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("create lock: %w", err)
	}

	existing, readErr := m.readLock()
	if readErr != nil {
		if os.IsNotExist(readErr) {
			// Holder released between our create attempt and read.
			rec, err = m.tryCreate()
			if err != nil {
				return nil, errclass.ErrLockRace.WithMessagef("scope %s lock contended: %v", m.scope, err)
			}
			return rec, nil
		}
		return nil, fmt.Errorf("read existing lock: %w", readErr)
	}

	if m.probes.PIDAlive(existing.PID) {
		return nil, errclass.ErrLockHeld.WithMessagef(
			"scope %s is locked by running pid %d; wait for it to finish or run 'tiersync %s-status'",
			m.scope, existing.PID, m.scope)
	}

	age := existing.Age(m.probes.Now())
	threshold := m.staleThreshold()
	if age <= threshold {
		return nil, errclass.ErrLockHeld.WithMessagef(
			"scope %s lock at %s held by dead pid %d but only %s old (stale after %s); retry shortly or remove the file",
			m.scope, m.path, existing.PID, age.Round(time.Second), threshold)
	}

	logging.Warn("reclaiming stale lock", map[string]any{
		"scope": string(m.scope),
		"pid":   existing.PID,
		"age":   age.Round(time.Second).String(),
	})
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale lock: %w", err)
	}

	rec, err = m.tryCreate()
	if err != nil {
		if os.IsExist(err) {
			return nil, errclass.ErrLockRace.WithMessagef(
				"scope %s lock re-acquired by another process during stale reclaim", m.scope)
		}
		return nil, fmt.Errorf("create lock after reclaim: %w", err)
	}
	return rec, nil
}

// Release unconditionally removes the lock file. Idempotent; safe to call on
// every exit path including signal handlers.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Status returns the lock state for reporters.
func (m *Manager) Status() (model.LockState, *model.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.readLock()
	if err != nil {
		if os.IsNotExist(err) {
			return model.LockStateFree, nil, nil
		}
		return model.LockStateFree, nil, fmt.Errorf("read lock: %w", err)
	}

	if m.probes.PIDAlive(rec.PID) {
		return model.LockStateHeld, rec, nil
	}
	return model.LockStateStale, rec, nil
}

func (m *Manager) staleThreshold() time.Duration {
	uptime, err := m.probes.Uptime()
	if err != nil {
		// Without uptime, err on the conservative side.
		return staleSteadyState
	}
	if uptime < bootWindow {
		return staleDuringBoot
	}
	return staleSteadyState
}

func (m *Manager) tryCreate() (*model.LockRecord, error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rec := &model.LockRecord{
		Scope:      m.scope,
		PID:        os.Getpid(),
		AcquiredAt: m.probes.Now().UTC(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		os.Remove(m.path)
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(m.path)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	if err := file.Sync(); err != nil {
		os.Remove(m.path)
		return nil, fmt.Errorf("sync lock: %w", err)
	}
	return rec, nil
}

func (m *Manager) readLock() (*model.LockRecord, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var rec model.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}
