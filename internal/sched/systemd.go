// Package sched queries the systemd units that trigger periodic saves. All
// information is read-only; the unit definitions themselves are installed
// outside this tool.
package sched

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/model"
)

// systemctl prints wall-clock properties in this layout.
const stampLayout = "Mon 2006-01-02 15:04:05 MST"

// Querier reads timer metadata via systemctl.
type Querier struct {
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewQuerier creates a querier backed by the real systemctl binary.
func NewQuerier() *Querier {
	return &Querier{runner: runCommand}
}

// NewQuerierWithRunner creates a querier with an injected command runner.
func NewQuerierWithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *Querier {
	return &Querier{runner: runner}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// TimerInfo returns the scope timer's configured trigger and its next/last
// elapse times. Both calendar-based and relative-interval timers are
// understood; a timer that has never fired has a zero Last.
func (q *Querier) TimerInfo(ctx context.Context, scope model.Scope) (*model.TimerInfo, error) {
	unit := scope.TimerUnit()

	args := unitArgs(scope,
		"show", unit,
		"--property=TimersCalendar,TimersMonotonic,NextElapseUSecRealtime,LastTriggerUSec")
	out, err := q.runner(ctx, "systemctl", args...)
	if err != nil {
		return nil, errclass.ErrSchedUnavailable.WithMessagef("systemctl show %s: %v", unit, err)
	}

	info := &model.TimerInfo{Unit: unit}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "TimersCalendar", "TimersMonotonic":
			if trigger := parseTrigger(value); trigger != "" {
				info.Trigger = trigger
			}
		case "NextElapseUSecRealtime":
			info.Next = parseStamp(value)
		case "LastTriggerUSec":
			info.Last = parseStamp(value)
		}
	}
	return info, nil
}

// JournalArgs builds the journalctl argument list for the scope's service,
// with caller-provided passthrough options appended.
func JournalArgs(scope model.Scope, extra []string) []string {
	args := unitArgs(scope, "-u", scope.ServiceUnit())
	return append(args, extra...)
}

func unitArgs(scope model.Scope, args ...string) []string {
	if scope.UserUnit() {
		return append([]string{"--user"}, args...)
	}
	return args
}

// parseTrigger extracts the trigger expression from a systemd timer
// property, e.g. "{ OnCalendar=*-*-* *:00/15:00 ; next_elapse=... }" or
// "{ OnUnitActiveUSec=15min ; next_elapse=... }".
func parseTrigger(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "{") {
		return ""
	}
	value = strings.Trim(value, "{} ")
	first, _, _ := strings.Cut(value, ";")
	first = strings.TrimSpace(first)
	if first == "" {
		return ""
	}
	return first
}

// parseStamp reads a systemctl wall-clock property, returning the zero time
// for empty or n/a values (a freshly installed timer has no last trigger).
func parseStamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "n/a" || value == "0" {
		return time.Time{}
	}
	t, err := time.Parse(stampLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Describe renders a TimerInfo for human-readable status output.
func Describe(info *model.TimerInfo) string {
	trigger := info.Trigger
	if trigger == "" {
		trigger = "no trigger configured"
	}
	next := "n/a"
	if !info.Next.IsZero() {
		next = info.Next.Format(time.RFC3339)
	}
	last := "never"
	if !info.Last.IsZero() {
		last = info.Last.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s (%s) next=%s last=%s", info.Unit, trigger, next, last)
}
