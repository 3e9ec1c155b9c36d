package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/report"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

func newStatusCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-status", scope),
		Short: fmt.Sprintf("Show %s scope status", scope),
		Long: fmt.Sprintf(`Show %s scope status.

Reports the persistent store's mount state and disk usage, the scope
lock, the last recorded operation and the scheduler timer. Read-only;
never takes the lock.`, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runStatus(mustConfig(), scope) {
				os.Exit(1)
			}
		},
	}
}

var legacyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status for both scopes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		ok := true
		for _, scope := range model.AllScopes {
			if !runStatus(cfg, scope) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func runStatus(cfg *config.Config, scope model.Scope) bool {
	r := report.NewStatus(cfg)
	st, err := r.Gather(context.Background(), scope)
	if err != nil {
		fmtErr("%s-status: %v", scope, err)
		return false
	}

	if jsonOutput {
		outputJSON(st)
		return true
	}
	r.Render(os.Stdout, st)
	return true
}

func init() {
	for _, scope := range model.AllScopes {
		rootCmd.AddCommand(newStatusCmd(scope))
	}
	rootCmd.AddCommand(legacyStatusCmd)
}
