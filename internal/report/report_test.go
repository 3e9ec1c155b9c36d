package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiersync/tiersync/internal/ledger"
	"github.com/tiersync/tiersync/internal/state"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default(config.Identity{Username: "tester", UID: 1000, GID: 1000, Home: dir})
	cfg.User.RunDir = filepath.Join(dir, "run")
	cfg.User.StateDir = filepath.Join(dir, "state")
	cfg.User.PersistentRoot = filepath.Join(dir, "persist")
	return cfg
}

func appendRows(t *testing.T, cfg *config.Config, rows ...model.MetricsRow) {
	book := ledger.New(cfg.LedgerPath(model.ScopeUser))
	for _, row := range rows {
		require.NoError(t, book.Append(row))
	}
}

func TestStatsGather_AggregatesByCacheName(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now().UTC()
	appendRows(t, cfg,
		model.MetricsRow{Timestamp: now, CacheName: "browser-cache", Operation: "save", TotalBytes: 100, LiteralBytes: 40, MatchedBytes: 60, FileCount: 5, DurationMS: 120},
		model.MetricsRow{Timestamp: now, CacheName: "ecc-cache", Operation: "save", TotalBytes: 10, LiteralBytes: 10, FileCount: 1, DurationMS: 30},
		model.MetricsRow{Timestamp: now, CacheName: "browser-cache", Operation: "load", TotalBytes: 200, LiteralBytes: 160, MatchedBytes: 40, FileCount: 9, DurationMS: 80},
	)

	report, err := NewStats(cfg).Gather(model.ScopeUser, "")
	require.NoError(t, err)
	require.Len(t, report.Caches, 2)

	browser := report.Caches[0]
	assert.Equal(t, "browser-cache", browser.Name, "caches sorted by name")
	assert.Equal(t, 2, browser.Operations)
	assert.Equal(t, int64(300), browser.TotalBytes)
	assert.Equal(t, int64(200), browser.LiteralBytes)
	assert.Equal(t, int64(100), browser.MatchedBytes)
	assert.Equal(t, int64(14), browser.FileCount)
	assert.Equal(t, int64(200), browser.TotalDurationMS)
	assert.Equal(t, int64(170), browser.EstimatedWriteBytes, "literal bytes scaled by 0.85")

	assert.Equal(t, 3, report.Totals.Operations)
	assert.Equal(t, int64(310), report.Totals.TotalBytes)
	assert.Equal(t, int64(178), report.Totals.EstimatedWriteBytes)
}

func TestStatsGather_UnknownCacheNamesStillReported(t *testing.T) {
	cfg := testConfig(t)
	appendRows(t, cfg, model.MetricsRow{
		Timestamp: time.Now().UTC(), CacheName: "retired-cache",
		Operation: "save", TotalBytes: 5, LiteralBytes: 5, FileCount: 1,
	})

	report, err := NewStats(cfg).Gather(model.ScopeUser, "")
	require.NoError(t, err)
	require.Len(t, report.Caches, 1)
	assert.Equal(t, "retired-cache", report.Caches[0].Name)
}

func TestStatsGather_Filter(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now().UTC()
	appendRows(t, cfg,
		model.MetricsRow{Timestamp: now, CacheName: "a", Operation: "save", TotalBytes: 1, LiteralBytes: 1, FileCount: 1},
		model.MetricsRow{Timestamp: now, CacheName: "b", Operation: "save", TotalBytes: 2, LiteralBytes: 2, FileCount: 1},
	)

	report, err := NewStats(cfg).Gather(model.ScopeUser, "b")
	require.NoError(t, err)
	require.Len(t, report.Caches, 1)
	assert.Equal(t, "b", report.Caches[0].Name)
	assert.Equal(t, int64(2), report.Totals.TotalBytes)
}

func TestStatsRender_EmptyLedger(t *testing.T) {
	cfg := testConfig(t)
	r := NewStats(cfg)

	report, err := r.Gather(model.ScopeUser, "")
	require.NoError(t, err)
	assert.True(t, report.Empty())

	var buf bytes.Buffer
	r.Render(&buf, report)
	assert.Contains(t, buf.String(), "no metrics data for user scope")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", HumanBytes(512))
	assert.Equal(t, "1.0 KiB", HumanBytes(1024))
	assert.Equal(t, "10.0 MiB", HumanBytes(10*1024*1024))
	assert.Equal(t, "1.5 GiB", HumanBytes(3*512*1024*1024))
}

type fakeTimers struct {
	info *model.TimerInfo
	err  error
}

func (f *fakeTimers) TimerInfo(context.Context, model.Scope) (*model.TimerInfo, error) {
	return f.info, f.err
}

func testStatusReporter(cfg *config.Config) *StatusReporter {
	r := NewStatus(cfg)
	r.timers = &fakeTimers{info: &model.TimerInfo{Unit: "tiersync-user.timer", Trigger: "OnCalendar=hourly"}}
	r.mounted = func(string) (bool, error) { return true, nil }
	r.usage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Used: 400, Free: 600, UsedPercent: 40}, nil
	}
	return r
}

func TestStatusGather_FreshScope(t *testing.T) {
	cfg := testConfig(t)
	st, err := testStatusReporter(cfg).Gather(context.Background(), model.ScopeUser)
	require.NoError(t, err)

	assert.True(t, st.Mounted)
	assert.Equal(t, model.LockStateFree, st.Lock.State)
	assert.Equal(t, model.StatusUnknown, st.LastOp.Status)
	require.NotNil(t, st.Disk)
	assert.Equal(t, uint64(600), st.Disk.FreeBytes)
	require.NotNil(t, st.Timer)
	assert.Equal(t, "OnCalendar=hourly", st.Timer.Trigger)
}

func TestStatusGather_HeldLockAndLastOp(t *testing.T) {
	cfg := testConfig(t)

	lockPath := cfg.LockPath(model.ScopeUser)
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0755))
	data, err := json.Marshal(model.LockRecord{
		Scope: model.ScopeUser, PID: os.Getpid(), AcquiredAt: time.Now().Add(-90 * time.Second),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, data, 0644))

	require.NoError(t, state.New(cfg.StatePath(model.ScopeUser)).Save(model.StateRecord{
		Timestamp: time.Now().UTC(), Operation: "save",
		Status: model.StatusSuccess, TotalBytes: 4096, PID: 1234,
	}))

	st, err := testStatusReporter(cfg).Gather(context.Background(), model.ScopeUser)
	require.NoError(t, err)

	assert.Equal(t, model.LockStateHeld, st.Lock.State)
	assert.Equal(t, os.Getpid(), st.Lock.PID)
	assert.GreaterOrEqual(t, st.Lock.Age, 90*time.Second)
	assert.Equal(t, model.StatusSuccess, st.LastOp.Status)
	assert.Equal(t, int64(4096), st.LastOp.TotalBytes)
}

func TestStatusGather_TimerUnavailableDegrades(t *testing.T) {
	cfg := testConfig(t)
	r := testStatusReporter(cfg)
	r.timers = &fakeTimers{err: errors.New("systemctl not found")}

	st, err := r.Gather(context.Background(), model.ScopeUser)
	require.NoError(t, err, "missing scheduler must not fail status")
	assert.Nil(t, st.Timer)
	assert.Contains(t, st.TimerNote, "systemctl not found")
}

func TestStatusRender(t *testing.T) {
	cfg := testConfig(t)
	r := testStatusReporter(cfg)
	st, err := r.Gather(context.Background(), model.ScopeUser)
	require.NoError(t, err)

	var buf bytes.Buffer
	r.Render(&buf, st)
	out := buf.String()

	assert.Contains(t, out, "user scope")
	assert.Contains(t, out, "mounted")
	assert.Contains(t, out, "free")
	assert.Contains(t, out, "none recorded")
	assert.Contains(t, out, "tiersync-user.timer")
}

func TestFilesWrite_MissingLog(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	require.NoError(t, NewFiles(cfg).Write(&buf, model.ScopeUser))
	assert.Contains(t, buf.String(), "no transfer log for user scope")
}

func TestFilesWrite_EmptyLog(t *testing.T) {
	cfg := testConfig(t)
	path := cfg.TransferLogPath(model.ScopeUser)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))

	var buf bytes.Buffer
	require.NoError(t, NewFiles(cfg).Write(&buf, model.ScopeUser))
	assert.Contains(t, buf.String(), "moved no files")
}

func TestFilesWrite_CopiesLog(t *testing.T) {
	cfg := testConfig(t)
	path := cfg.TransferLogPath(model.ScopeUser)
	content := ">f+++++++++ profile/cookies.sqlite\n*deleting   tmp/stale.bin\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var buf bytes.Buffer
	require.NoError(t, NewFiles(cfg).Write(&buf, model.ScopeUser))
	assert.Equal(t, content, buf.String())
}
