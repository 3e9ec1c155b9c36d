package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/report"
	"github.com/tiersync/tiersync/internal/syncer"
	"github.com/tiersync/tiersync/pkg/color"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

func newLoadCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-load", scope),
		Short: fmt.Sprintf("Load %s caches from persistent into runtime storage", scope),
		Long: fmt.Sprintf(`Load %s caches from persistent into runtime storage.

Mirrors every hot cache set of the %s scope from the persistent backing
store into its RAM-backed runtime directory. Intended to run once after
boot, before the cache consumers start.`, scope, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runSync(mustConfig(), scope, model.OpLoad) {
				os.Exit(1)
			}
		},
	}
}

func newSaveCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-save", scope),
		Short: fmt.Sprintf("Save %s caches from runtime to persistent storage", scope),
		Long: fmt.Sprintf(`Save %s caches from runtime to persistent storage.

Mirrors every hot cache set of the %s scope from its RAM-backed runtime
directory back to the persistent backing store. Runs on timer ticks and
at shutdown.`, scope, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runSync(mustConfig(), scope, model.OpSave) {
				os.Exit(1)
			}
		},
	}
}

var legacyLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load caches for both scopes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runLegacySync(model.OpLoad)
	},
}

var legacySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save caches for both scopes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runLegacySync(model.OpSave)
	},
}

// runLegacySync runs the operation for every scope. One scope failing must
// not stop the other, but the combined exit still reports the failure.
func runLegacySync(op string) {
	cfg := mustConfig()
	ok := true
	for _, scope := range model.AllScopes {
		if !runSync(cfg, scope, op) {
			ok = false
		}
	}
	if !ok {
		os.Exit(1)
	}
}

func runSync(cfg *config.Config, scope model.Scope, op string) bool {
	engine := syncer.New(cfg, syncer.Options{DryRun: dryRun, Verbose: verbose})

	ctx := context.Background()
	var summary *syncer.Summary
	var err error
	if op == model.OpLoad {
		summary, err = engine.Load(ctx, scope)
	} else {
		summary, err = engine.Save(ctx, scope)
	}
	if err != nil {
		fmtErr("%s-%s: %v", scope, op, err)
		return false
	}

	if jsonOutput {
		outputJSON(summary)
		return true
	}
	renderSummary(summary)
	return true
}

func renderSummary(s *syncer.Summary) {
	for _, set := range s.Sets {
		switch {
		case set.Failed:
			fmt.Printf("  %s: %s\n", color.CacheName(set.Name), color.Error("failed"))
		case set.Partial:
			fmt.Printf("  %s: %s in %d files (%s)\n",
				color.CacheName(set.Name), report.HumanBytes(set.TotalBytes),
				set.FileCount, color.Warning("partial"))
		default:
			fmt.Printf("  %s: %s in %d files\n",
				color.CacheName(set.Name), report.HumanBytes(set.TotalBytes), set.FileCount)
		}
	}

	outcome := fmt.Sprintf("%s %s: %s, %s total", s.Scope, s.Operation, s.Status, report.HumanBytes(s.TotalBytes))
	switch s.Status {
	case model.StatusFailure:
		fmt.Println(color.Warning(outcome))
	default:
		fmt.Println(color.Success(outcome))
	}
}

func init() {
	for _, scope := range model.AllScopes {
		rootCmd.AddCommand(newLoadCmd(scope), newSaveCmd(scope))
	}
	rootCmd.AddCommand(legacyLoadCmd, legacySaveCmd)
}
