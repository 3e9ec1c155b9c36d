package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/model"
)

func TestParseScope(t *testing.T) {
	for _, s := range []string{"user", "system"} {
		scope, err := model.ParseScope(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(scope))
	}

	_, err := model.ParseScope("global")
	require.ErrorIs(t, err, errclass.ErrScopeInvalid)
}

func TestScopeUnits(t *testing.T) {
	assert.Equal(t, "tiersync-user.timer", model.ScopeUser.TimerUnit())
	assert.Equal(t, "tiersync-system.service", model.ScopeSystem.ServiceUnit())
	assert.True(t, model.ScopeUser.UserUnit())
	assert.False(t, model.ScopeSystem.UserUnit())
}

func TestAllScopesOrder(t *testing.T) {
	require.Len(t, model.AllScopes, 2)
	assert.Equal(t, model.ScopeUser, model.AllScopes[0], "legacy verbs run the user scope first")
}
