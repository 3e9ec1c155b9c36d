package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiersync/tiersync/internal/checkup"
	"github.com/tiersync/tiersync/pkg/color"
	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

func newValidateCmd(scope model.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-validate", scope),
		Short: fmt.Sprintf("Validate %s scope storage", scope),
		Long: fmt.Sprintf(`Validate %s scope storage.

Checks that the persistent store is mounted and writable and that cold
cache sets are bind mounts with the expected backing path and ownership.
The same checks gate every load and save.`, scope),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !runValidate(mustConfig(), scope) {
				os.Exit(1)
			}
		},
	}
}

var legacyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate storage for both scopes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		ok := true
		for _, scope := range model.AllScopes {
			if !runValidate(cfg, scope) {
				ok = false
			}
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func runValidate(cfg *config.Config, scope model.Scope) bool {
	result, err := checkup.NewChecker(cfg, scope).Check()
	if err != nil {
		fmtErr("%s-validate: %v", scope, err)
		return false
	}

	if jsonOutput {
		outputJSON(result)
		return result.OK
	}

	if len(result.Findings) == 0 {
		fmt.Printf("%s scope storage is %s\n", scope, color.Success("healthy"))
		return true
	}

	fmt.Printf("%s scope findings (%d):\n", scope, len(result.Findings))
	for _, f := range result.Findings {
		severity := f.Severity
		switch f.Severity {
		case checkup.SeverityError:
			severity = color.Error(severity)
		case checkup.SeverityWarning:
			severity = color.Warning(severity)
		}
		fmt.Printf("  [%s] %s: %s\n", severity, f.Category, f.Description)
	}
	return result.OK
}

func init() {
	for _, scope := range model.AllScopes {
		rootCmd.AddCommand(newValidateCmd(scope))
	}
	rootCmd.AddCommand(legacyValidateCmd)
}
