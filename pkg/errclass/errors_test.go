package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiersync/tiersync/pkg/errclass"
)

func TestSyncError_Error(t *testing.T) {
	err := errclass.ErrLockHeld.WithMessage("scope user is locked by pid 4242")
	assert.Equal(t, "E_LOCK_HELD: scope user is locked by pid 4242", err.Error())
}

func TestSyncError_CodeOnly(t *testing.T) {
	assert.Equal(t, "E_NOT_MOUNTED", errclass.ErrNotMounted.Error())
}

func TestSyncError_Is(t *testing.T) {
	err := errclass.ErrLockHeld.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrLockHeld))
	require.False(t, errors.Is(err, errclass.ErrLockRace))
}

func TestSyncError_IsThroughWrap(t *testing.T) {
	err := fmt.Errorf("acquire: %w", errclass.ErrNotWritable.WithMessage("probe failed"))
	require.True(t, errors.Is(err, errclass.ErrNotWritable))
}

func TestSyncError_WithMessagef(t *testing.T) {
	err := errclass.ErrColdOwnership.WithMessagef("cache %q owned by uid %d", "var-cache", 0)
	assert.Equal(t, `E_COLD_OWNERSHIP: cache "var-cache" owned by uid 0`, err.Error())
}
