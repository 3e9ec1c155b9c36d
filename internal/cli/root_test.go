package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandNames() map[string]bool {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[strings.Fields(c.Use)[0]] = true
	}
	return names
}

func TestPerScopeVerbsRegistered(t *testing.T) {
	names := commandNames()
	for _, scope := range []string{"user", "system"} {
		for _, verb := range []string{"load", "save", "status", "validate", "stats", "log", "files"} {
			assert.True(t, names[scope+"-"+verb], "missing %s-%s", scope, verb)
		}
	}
}

func TestLegacyVerbsRegistered(t *testing.T) {
	names := commandNames()
	for _, verb := range []string{"load", "save", "status", "validate", "stats", "log", "files"} {
		assert.True(t, names[verb], "missing legacy %s", verb)
	}
}

func TestGlobalFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	for _, name := range []string{"json", "dry-run", "verbose", "no-color"} {
		assert.NotNil(t, flags.Lookup(name), "missing --%s", name)
	}
	require.NotNil(t, flags.ShorthandLookup("v"))
	assert.Equal(t, "verbose", flags.ShorthandLookup("v").Name)
}

func TestStatsCommandsHaveFilterFlag(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if strings.HasSuffix(name, "stats") {
			assert.NotNil(t, c.Flags().Lookup("filter"), "%s missing --filter", name)
		}
	}
}
