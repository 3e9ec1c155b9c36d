package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/report"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
	"github.com/tiersync/tiersync/pkg/pathutil"
)

var statsFilter string

func newStatsCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-stats", scope),
		Short: fmt.Sprintf("Show cumulative %s transfer metrics", scope),
		Long: fmt.Sprintf(`Show cumulative %s transfer metrics.

Aggregates the scope's metrics ledger per cache name: operations, bytes
transferred and an estimate of bytes written to the backing store. Use
--filter to restrict the report to one cache.`, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runStats(mustConfig(), scope) {
				os.Exit(1)
			}
		},
	}
}

var legacyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transfer metrics for both scopes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		ok := true
		for _, scope := range model.AllScopes {
			if !runStats(cfg, scope) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func runStats(cfg *config.Config, scope model.Scope) bool {
	if statsFilter != "" {
		if err := pathutil.ValidateCacheName(statsFilter); err != nil {
			fmtErr("%s-stats: --filter: %v", scope, err)
			return false
		}
	}

	r := report.NewStats(cfg)
	rep, err := r.Gather(scope, statsFilter)
	if err != nil {
		fmtErr("%s-stats: %v", scope, err)
		return false
	}

	if jsonOutput {
		outputJSON(rep)
		return true
	}
	r.Render(os.Stdout, rep)
	return true
}

func init() {
	for _, scope := range model.AllScopes {
		cmd := newStatsCmd(scope)
		cmd.Flags().StringVar(&statsFilter, "filter", "", "report only the named cache")
		rootCmd.AddCommand(cmd)
	}
	legacyStatsCmd.Flags().StringVar(&statsFilter, "filter", "", "report only the named cache")
	rootCmd.AddCommand(legacyStatsCmd)
}
