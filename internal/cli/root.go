// Package cli wires the tiersync commands. Every data-moving verb is bound
// to one scope; the bare legacy verbs run both scopes in sequence for old
// timer units that predate per-scope scheduling.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/pkg/color"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/logging"
)

var (
	jsonOutput bool
	dryRun     bool
	verbose    bool
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "tiersync",
		Short: "Tiered cache synchronization",
		Long: `tiersync mirrors named cache directories between RAM-backed runtime
storage and a persistent backing store. Hot caches are synchronized with
rsync on boot, shutdown and timer ticks; cold caches stay bind-mounted on
persistent storage and are only validated.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.Disable()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be transferred without changing anything")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "pass verbose output through from the transfer tool")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// mustConfig resolves the configuration or exits. Every verb needs it, and a
// broken config is never recoverable mid-command.
func mustConfig() *config.Config {
	cfg, err := config.Resolve()
	if err != nil {
		fmtErr("configuration: %v", err)
		os.Exit(1)
	}
	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	logging.SetGlobal(logging.NewLogger(level))
	return cfg
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "tiersync: "
	if color.Enabled() {
		prefix = color.Error("tiersync:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
