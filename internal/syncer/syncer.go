// Package syncer orchestrates one sync command for one scope: acquire the
// scope lock, validate storage, mirror each hot cache set in order, persist
// state and metrics, release the lock. The lock is released on every exit
// path, including termination signals.
package syncer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tiersync/tiersync/internal/checkup"
	"github.com/tiersync/tiersync/internal/ledger"
	"github.com/tiersync/tiersync/internal/lockfile"
	"github.com/tiersync/tiersync/internal/mirror"
	"github.com/tiersync/tiersync/internal/state"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/logging"
	"github.com/tiersync/tiersync/pkg/model"
)

// Options are the global command flags affecting sync behavior.
type Options struct {
	DryRun  bool
	Verbose bool
}

// SetResult is the outcome of one cache set's transfer.
type SetResult struct {
	Name         string        `json:"name"`
	TotalBytes   int64         `json:"total_bytes"`
	LiteralBytes int64         `json:"literal_bytes"`
	FileCount    int64         `json:"file_count"`
	Duration     time.Duration `json:"duration"`
	Partial      bool          `json:"partial,omitempty"`
	Failed       bool          `json:"failed,omitempty"`
}

// Summary is the outcome of one command.
type Summary struct {
	Scope      model.Scope    `json:"scope"`
	Operation  string         `json:"operation"`
	Status     model.OpStatus `json:"status"`
	TotalBytes int64          `json:"total_bytes"`
	Sets       []SetResult    `json:"sets"`
}

type checkRunner interface {
	Check() (*checkup.Result, error)
}

type mirrorRunner interface {
	Sync(ctx context.Context, req mirror.Request) (*mirror.Result, error)
}

// Engine runs sync commands against a resolved configuration.
type Engine struct {
	cfg  *config.Config
	opts Options

	executor   mirrorRunner
	newLock    func(scope model.Scope) *lockfile.Manager
	newChecker func(scope model.Scope) checkRunner
}

// New creates an engine.
func New(cfg *config.Config, opts Options) *Engine {
	return &Engine{
		cfg:      cfg,
		opts:     opts,
		executor: mirror.NewExecutor(cfg.MirrorBinary, opts.DryRun, opts.Verbose),
		newLock: func(scope model.Scope) *lockfile.Manager {
			return lockfile.NewManager(cfg.LockPath(scope), scope)
		},
		newChecker: func(scope model.Scope) checkRunner {
			return checkup.NewChecker(cfg, scope)
		},
	}
}

// Load mirrors each hot cache set from persistent to runtime storage.
func (e *Engine) Load(ctx context.Context, scope model.Scope) (*Summary, error) {
	return e.run(ctx, scope, model.OpLoad)
}

// Save mirrors each hot cache set from runtime to persistent storage.
func (e *Engine) Save(ctx context.Context, scope model.Scope) (*Summary, error) {
	return e.run(ctx, scope, model.OpSave)
}

func (e *Engine) run(ctx context.Context, scope model.Scope, op string) (*Summary, error) {
	lock := e.newLock(scope)
	if _, err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer e.guardRelease(lock, scope)()

	if err := e.validate(scope); err != nil {
		return nil, err
	}

	summary := &Summary{Scope: scope, Operation: op, Status: model.StatusSuccess}
	if e.opts.DryRun {
		summary.Status = model.StatusDryRun
	}

	book := ledger.New(e.cfg.LedgerPath(scope))
	var itemized []string
	anyFailed := false

	for _, set := range e.cfg.HotSets(scope) {
		// Source and destination fully determine the transfer; the
		// operation name is only a log label.
		src, dst := set.PersistentPath, set.RuntimePath
		if op == model.OpSave {
			src, dst = set.RuntimePath, set.PersistentPath
		}

		result, setRes := e.syncOne(ctx, set, src, dst, op)
		summary.Sets = append(summary.Sets, setRes)
		if setRes.Failed {
			anyFailed = true
			continue
		}
		summary.TotalBytes += setRes.TotalBytes
		itemized = append(itemized, mirror.ItemizedLines(result.RawOutput)...)

		if !e.opts.DryRun && setRes.LiteralBytes > 0 {
			row := model.MetricsRow{
				Timestamp:    time.Now().UTC(),
				CacheName:    set.Name,
				Operation:    op,
				TotalBytes:   result.Counts.TotalBytes,
				LiteralBytes: result.Counts.LiteralBytes,
				MatchedBytes: result.Counts.MatchedBytes,
				FileCount:    result.Counts.FileCount,
				DurationMS:   setRes.Duration.Milliseconds(),
			}
			if err := book.Append(row); err != nil {
				logging.ErrorErr("append metrics row", err, map[string]any{"cache": set.Name})
			}
		}
	}

	if anyFailed {
		summary.Status = model.StatusFailure
	}

	if !e.opts.DryRun {
		e.writeTransferLog(scope, itemized)
	}

	rec := model.StateRecord{
		Timestamp:  time.Now().UTC(),
		Operation:  op,
		Status:     summary.Status,
		TotalBytes: summary.TotalBytes,
		PID:        os.Getpid(),
	}
	if err := state.New(e.cfg.StatePath(scope)).Save(rec); err != nil {
		logging.ErrorErr("save state record", err, map[string]any{"scope": string(scope)})
	}

	return summary, nil
}

// syncOne transfers a single cache set. The start time is captured right
// before this set's transfer so its duration never includes earlier sets.
func (e *Engine) syncOne(ctx context.Context, set model.CacheSet, src, dst, op string) (*mirror.Result, SetResult) {
	setRes := SetResult{Name: set.Name}

	if !e.opts.DryRun {
		if err := os.MkdirAll(dst, 0755); err != nil {
			logging.ErrorErr("create destination", err, map[string]any{"cache": set.Name, "dest": dst})
			setRes.Failed = true
			return nil, setRes
		}
	}

	start := time.Now()
	result, err := e.executor.Sync(ctx, mirror.Request{
		Set:    set,
		Source: src,
		Dest:   dst,
		Label:  op,
	})
	setRes.Duration = time.Since(start)

	if err != nil {
		// One cache set failing must never block the remaining sets.
		logging.ErrorErr("cache set sync failed", err, map[string]any{
			"cache":     set.Name,
			"direction": op,
		})
		setRes.Failed = true
		return nil, setRes
	}

	setRes.TotalBytes = result.Counts.TotalBytes
	setRes.LiteralBytes = result.Counts.LiteralBytes
	setRes.FileCount = result.Counts.FileCount
	setRes.Partial = result.Partial
	return result, setRes
}

func (e *Engine) validate(scope model.Scope) error {
	result, err := e.newChecker(scope).Check()
	if err != nil {
		return fmt.Errorf("validate %s: %w", scope, err)
	}
	for _, f := range result.Findings {
		if f.Severity == checkup.SeverityWarning {
			logging.Warn(f.Description, map[string]any{"scope": string(scope), "path": f.Path})
		}
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("validate %s: %w", scope, err)
	}
	return nil
}

// guardRelease returns the deferred cleanup and installs a signal handler so
// the lock is also released when the process is terminated mid-transfer. A
// partially completed transfer is left as-is; the next invocation reconciles.
func (e *Engine) guardRelease(lock *lockfile.Manager, scope model.Scope) func() {
	release := func() {
		if err := lock.Release(); err != nil {
			logging.ErrorErr("release lock", err, map[string]any{"scope": string(scope)})
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			release()
			os.Exit(1)
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(sigCh)
		release()
	}
}

func (e *Engine) writeTransferLog(scope model.Scope, lines []string) {
	path := e.cfg.TransferLogPath(scope)
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.MkdirAll(e.cfg.Scope(scope).StateDir, 0755); err != nil {
		logging.ErrorErr("create state dir", err, nil)
		return
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		logging.ErrorErr("write transfer log", err, map[string]any{"path": path})
	}
}
