package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiersync/tiersync/internal/lockfile"
	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/model"
)

type fakeHost struct {
	uptime time.Duration
	alive  map[int]bool
	now    time.Time
}

func (f *fakeHost) probes() lockfile.Probes {
	return lockfile.Probes{
		Uptime:   func() (time.Duration, error) { return f.uptime, nil },
		PIDAlive: func(pid int) bool { return f.alive[pid] },
		Now:      func() time.Time { return f.now },
	}
}

func newManager(t *testing.T, f *fakeHost) (*lockfile.Manager, string) {
	path := filepath.Join(t.TempDir(), "user.lock")
	return lockfile.NewManagerWithProbes(path, model.ScopeUser, f.probes()), path
}

func steadyHost() *fakeHost {
	return &fakeHost{
		uptime: time.Hour,
		alive:  map[int]bool{os.Getpid(): true},
		now:    time.Now(),
	}
}

func TestAcquireRelease_LeavesNoFile(t *testing.T) {
	mgr, path := newManager(t, steadyHost())

	rec, err := mgr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)

	require.NoError(t, mgr.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRelease_Idempotent(t *testing.T) {
	mgr, _ := newManager(t, steadyHost())

	require.NoError(t, mgr.Release())
	_, err := mgr.Acquire()
	require.NoError(t, err)
	require.NoError(t, mgr.Release())
	require.NoError(t, mgr.Release())
}

func TestAcquire_HeldByLivePID(t *testing.T) {
	host := steadyHost()
	mgr, _ := newManager(t, host)

	_, err := mgr.Acquire()
	require.NoError(t, err)

	_, err = mgr.Acquire()
	require.ErrorIs(t, err, errclass.ErrLockHeld)
	assert.Contains(t, err.Error(), "pid")
}

func TestAcquire_DeadYoungHolder_NotReclaimed(t *testing.T) {
	host := steadyHost()
	mgr, _ := newManager(t, host)

	_, err := mgr.Acquire()
	require.NoError(t, err)

	// Holder dies; lock is only two minutes old against a 300s threshold.
	host.alive[os.Getpid()] = false
	host.now = host.now.Add(2 * time.Minute)

	_, err = mgr.Acquire()
	require.ErrorIs(t, err, errclass.ErrLockHeld)
}

func TestAcquire_DeadOldHolder_Reclaimed(t *testing.T) {
	host := steadyHost()
	mgr, _ := newManager(t, host)

	_, err := mgr.Acquire()
	require.NoError(t, err)

	host.alive[os.Getpid()] = false
	host.now = host.now.Add(6 * time.Minute)

	rec, err := mgr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
}

func TestAcquire_BootWindowShortThreshold(t *testing.T) {
	host := steadyHost()
	host.uptime = 2 * time.Minute // early boot
	mgr, _ := newManager(t, host)

	_, err := mgr.Acquire()
	require.NoError(t, err)

	// 90s-old orphan: younger than 300s but older than the 60s boot threshold.
	host.alive[os.Getpid()] = false
	host.now = host.now.Add(90 * time.Second)

	_, err = mgr.Acquire()
	require.NoError(t, err)
}

func TestAcquire_BootWindowYoungOrphanKept(t *testing.T) {
	host := steadyHost()
	host.uptime = 2 * time.Minute
	mgr, _ := newManager(t, host)

	_, err := mgr.Acquire()
	require.NoError(t, err)

	host.alive[os.Getpid()] = false
	host.now = host.now.Add(30 * time.Second)

	_, err = mgr.Acquire()
	require.ErrorIs(t, err, errclass.ErrLockHeld)
}

func TestStatus(t *testing.T) {
	host := steadyHost()
	mgr, _ := newManager(t, host)

	state, rec, err := mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LockStateFree, state)
	assert.Nil(t, rec)

	_, err = mgr.Acquire()
	require.NoError(t, err)

	state, rec, err = mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LockStateHeld, state)
	require.NotNil(t, rec)
	assert.Equal(t, os.Getpid(), rec.PID)

	host.alive[os.Getpid()] = false
	state, _, err = mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LockStateStale, state)
}

func TestAcquire_CorruptLockFile(t *testing.T) {
	host := steadyHost()
	mgr, path := newManager(t, host)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := mgr.Acquire()
	require.Error(t, err)
}
