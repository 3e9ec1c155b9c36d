package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/sched"
	"github.com/tiersync/tiersync/pkg/model"
)

func newLogCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-log [journalctl-options]", scope),
		Short: fmt.Sprintf("Show scheduler logs for the %s service", scope),
		Long: fmt.Sprintf(`Show scheduler logs for the %s service.

Runs journalctl against the scope's service unit. Everything after the
verb is passed through, so options like --since or -f work as usual.`, scope),
		DisableFlagParsing: true,
		Run: func(cmd *cobra.Command, args []string) {
			mustConfig()
			if !runJournal(scope, args) {
				os.Exit(1)
			}
		},
	}
}

var legacyLogCmd = &cobra.Command{
	Use:                "log [journalctl-options]",
	Short:              "Show scheduler logs for both scopes",
	DisableFlagParsing: true,
	Run: func(cmd *cobra.Command, args []string) {
		mustConfig()
		ok := true
		for _, scope := range model.AllScopes {
			if !runJournal(scope, args) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func runJournal(scope model.Scope, extra []string) bool {
	journal := exec.Command("journalctl", sched.JournalArgs(scope, extra)...)
	journal.Stdout = os.Stdout
	journal.Stderr = os.Stderr
	journal.Stdin = os.Stdin

	if err := journal.Run(); err != nil {
		fmtErr("%s-log: journalctl: %v", scope, err)
		return false
	}
	return true
}

func init() {
	for _, scope := range model.AllScopes {
		rootCmd.AddCommand(newLogCmd(scope))
	}
	rootCmd.AddCommand(legacyLogCmd)
}
