// Package report renders the read-only views of a scope: current status,
// aggregated transfer metrics and the last itemized file log. Reporters never
// take the scope lock; they observe whatever state is on disk.
package report

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tiersync/tiersync/internal/lockfile"
	"github.com/tiersync/tiersync/internal/sched"
	"github.com/tiersync/tiersync/internal/state"
	"github.com/tiersync/tiersync/pkg/color"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

// DiskUsage is the backing filesystem usage under the persistent root.
type DiskUsage struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// LockInfo describes the scope lock as seen by the status reporter.
type LockInfo struct {
	State model.LockState `json:"state"`
	PID   int             `json:"pid,omitempty"`
	Age   time.Duration   `json:"age,omitempty"`
}

// ScopeStatus is one scope's full status view.
type ScopeStatus struct {
	Scope          model.Scope       `json:"scope"`
	PersistentRoot string            `json:"persistent_root"`
	Mounted        bool              `json:"mounted"`
	Disk           *DiskUsage        `json:"disk,omitempty"`
	Lock           LockInfo          `json:"lock"`
	LastOp         model.StateRecord `json:"last_operation"`
	Timer          *model.TimerInfo  `json:"timer,omitempty"`
	TimerNote      string            `json:"timer_note,omitempty"`
}

type timerQuerier interface {
	TimerInfo(ctx context.Context, scope model.Scope) (*model.TimerInfo, error)
}

// StatusReporter gathers ScopeStatus views.
type StatusReporter struct {
	cfg *config.Config

	newLock func(scope model.Scope) *lockfile.Manager
	timers  timerQuerier
	usage   func(path string) (*disk.UsageStat, error)
	mounted func(path string) (bool, error)
}

// NewStatus creates a status reporter.
func NewStatus(cfg *config.Config) *StatusReporter {
	return &StatusReporter{
		cfg: cfg,
		newLock: func(scope model.Scope) *lockfile.Manager {
			return lockfile.NewManager(cfg.LockPath(scope), scope)
		},
		timers:  sched.NewQuerier(),
		usage:   disk.Usage,
		mounted: isMountPoint,
	}
}

// Gather collects the status of one scope. Unreachable subsystems degrade to
// notes rather than failing the whole report.
func (r *StatusReporter) Gather(ctx context.Context, scope model.Scope) (*ScopeStatus, error) {
	root := r.cfg.Scope(scope).PersistentRoot
	st := &ScopeStatus{Scope: scope, PersistentRoot: root}

	if mounted, err := r.mounted(root); err == nil {
		st.Mounted = mounted
	}
	if usage, err := r.usage(root); err == nil {
		st.Disk = &DiskUsage{
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		}
	}

	lockState, rec, err := r.newLock(scope).Status()
	if err != nil {
		return nil, fmt.Errorf("inspect lock: %w", err)
	}
	st.Lock = LockInfo{State: lockState}
	if rec != nil {
		st.Lock.PID = rec.PID
		st.Lock.Age = rec.Age(time.Now()).Round(time.Second)
	}

	last, err := state.New(r.cfg.StatePath(scope)).Load()
	if err != nil {
		return nil, fmt.Errorf("load state record: %w", err)
	}
	st.LastOp = last

	timer, err := r.timers.TimerInfo(ctx, scope)
	if err != nil {
		st.TimerNote = err.Error()
	} else {
		st.Timer = timer
	}
	return st, nil
}

// Render writes the human-readable status view.
func (r *StatusReporter) Render(w io.Writer, st *ScopeStatus) {
	fmt.Fprintln(w, color.Header(fmt.Sprintf("%s scope", st.Scope)))

	mountState := color.Error("not mounted")
	if st.Mounted {
		mountState = color.Success("mounted")
	}
	fmt.Fprintf(w, "  persistent root: %s (%s)\n", st.PersistentRoot, mountState)
	if st.Disk != nil {
		fmt.Fprintf(w, "  disk: %s free of %s (%.0f%% used)\n",
			HumanBytes(int64(st.Disk.FreeBytes)), HumanBytes(int64(st.Disk.TotalBytes)), st.Disk.UsedPercent)
	}

	switch st.Lock.State {
	case model.LockStateHeld:
		fmt.Fprintf(w, "  lock: %s\n", color.Warningf("held by pid %d for %s", st.Lock.PID, st.Lock.Age))
	case model.LockStateStale:
		fmt.Fprintf(w, "  lock: %s\n", color.Warningf("stale (pid %d is gone)", st.Lock.PID))
	default:
		fmt.Fprintf(w, "  lock: %s\n", color.Dim("free"))
	}

	if st.LastOp.Status == model.StatusUnknown {
		fmt.Fprintf(w, "  last operation: %s\n", color.Dim("none recorded"))
	} else {
		outcome := string(st.LastOp.Status)
		switch st.LastOp.Status {
		case model.StatusSuccess:
			outcome = color.Success(outcome)
		case model.StatusFailure:
			outcome = color.Error(outcome)
		}
		fmt.Fprintf(w, "  last operation: %s %s at %s (%s)\n",
			st.LastOp.Operation, outcome,
			st.LastOp.Timestamp.Local().Format(time.RFC3339),
			HumanBytes(st.LastOp.TotalBytes))
	}

	if st.Timer != nil {
		fmt.Fprintf(w, "  timer: %s\n", sched.Describe(st.Timer))
	} else if st.TimerNote != "" {
		fmt.Fprintf(w, "  timer: %s\n", color.Dim(st.TimerNote))
	}
}

// isMountPoint checks the mount table, falling back to a device comparison
// against the parent directory.
func isMountPoint(path string) (bool, error) {
	parts, err := disk.Partitions(true)
	if err == nil {
		clean := filepath.Clean(path)
		for _, p := range parts {
			if p.Mountpoint == clean {
				return true, nil
			}
		}
	}

	var st, parent syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return false, err
	}
	if err := syscall.Stat(filepath.Dir(path), &parent); err != nil {
		return false, err
	}
	return st.Dev != parent.Dev, nil
}

// HumanBytes renders a byte count in IEC units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
