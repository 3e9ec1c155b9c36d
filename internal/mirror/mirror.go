// Package mirror invokes the external mirroring tool (rsync) for one cache
// set at a time and parses its statistics output.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/logging"
	"github.com/tiersync/tiersync/pkg/model"
)

// rsync exit codes meaning a partial transfer: some files could not be read
// or vanished mid-transfer. Tolerated as non-fatal.
const (
	exitPartial  = 23
	exitVanished = 24
)

// Request describes one transfer. Label is human-readable direction context
// for logs only; transfer semantics come solely from Source and Dest.
type Request struct {
	Set    model.CacheSet
	Source string
	Dest   string
	Label  string
}

// Result holds the raw tool output and derived counters for one transfer.
type Result struct {
	RawOutput string
	Partial   bool
	Counts    Counts
}

// Executor runs the mirror tool.
type Executor struct {
	binary  string
	dryRun  bool
	verbose bool
}

// NewExecutor creates an executor for the configured mirror binary.
func NewExecutor(binary string, dryRun, verbose bool) *Executor {
	return &Executor{binary: binary, dryRun: dryRun, verbose: verbose}
}

// Sync mirrors Source onto Dest: archive-preserving, deleting extraneous
// destination files, with a statistics block and itemized change lines on
// stdout. Partial-transfer exits are tolerated and flagged on the Result.
func (e *Executor) Sync(ctx context.Context, req Request) (*Result, error) {
	if _, err := exec.LookPath(e.binary); err != nil {
		return nil, errclass.ErrMirrorUnavailable.WithMessagef("%s not found in PATH", e.binary)
	}

	args := []string{"-aH", "--delete", "--stats", "--itemize-changes"}
	if e.dryRun {
		args = append(args, "--dry-run")
	}
	if e.verbose {
		args = append(args, "-v")
	}
	for _, pattern := range req.Set.Excludes {
		args = append(args, "--exclude="+pattern)
	}
	args = append(args, strings.TrimSuffix(req.Source, "/")+"/", req.Dest)

	logging.Debug("mirror invocation", map[string]any{
		"cache":     req.Set.Name,
		"direction": req.Label,
		"source":    req.Source,
		"dest":      req.Dest,
		"dry_run":   e.dryRun,
	})

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &Result{RawOutput: stdout.String()}
	result.Counts = ParseStats(result.RawOutput)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			if code == exitPartial || code == exitVanished {
				logging.Warn("partial transfer", map[string]any{
					"cache":     req.Set.Name,
					"direction": req.Label,
					"exit_code": code,
				})
				result.Partial = true
				return result, nil
			}
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %s", e.binary, req.Set.Name, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", e.binary, req.Set.Name, runErr)
	}
	return result, nil
}

// ItemizedLines extracts the itemized change lines from raw tool output,
// dropping the statistics block and chatter.
func ItemizedLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if isItemized(line) {
			lines = append(lines, line)
		}
	}
	return lines
}

// isItemized recognizes rsync --itemize-changes lines: an 11-character
// change summary (e.g. ">f+++++++++") or a "*deleting" marker, followed by
// the path.
func isItemized(line string) bool {
	if strings.HasPrefix(line, "*deleting ") {
		return true
	}
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 || len(fields[0]) != 11 {
		return false
	}
	switch fields[0][0] {
	case '>', '<', 'c', 'h', '.':
		return true
	}
	return false
}
