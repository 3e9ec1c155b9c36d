package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/report"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

func newFilesCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-files", scope),
		Short: fmt.Sprintf("List files moved by the last %s transfer", scope),
		Long: fmt.Sprintf(`List files moved by the last %s transfer.

Prints the itemized change list recorded during the scope's most recent
real (non-dry-run) load or save.`, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runFiles(mustConfig(), scope) {
				os.Exit(1)
			}
		},
	}
}

var legacyFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "List files moved by the last transfer of each scope",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		ok := true
		for _, scope := range model.AllScopes {
			if !runFiles(cfg, scope) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func runFiles(cfg *config.Config, scope model.Scope) bool {
	if err := report.NewFiles(cfg).Write(os.Stdout, scope); err != nil {
		fmtErr("%s-files: %v", scope, err)
		return false
	}
	return true
}

func init() {
	for _, scope := range model.AllScopes {
		rootCmd.AddCommand(newFilesCmd(scope))
	}
	rootCmd.AddCommand(legacyFilesCmd)
}
