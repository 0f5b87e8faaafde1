// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/installer"
)

var setupProjectPath string

var setupCmd = &cobra.Command{
	Use:   "setup <name>",
	Short: "Detect the project and build a named environment for it",
	Long: `Detect the project's languages, resolve them to plugins, install the
required toolchain versions in dependency order, install project
dependencies, and record the environment so it can be activated with
'devenv switch'.

Setup is resilient: transient install failures are retried, permanent
ones fall back to an alternative provider when the plugin has one, and a
partial failure still produces a usable (degraded) environment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		res, err := eng.Setup(cmd.Context(), setupProjectPath, envstate.EnvName(args[0]))
		if res != nil {
			printSetupReport(res.Report)
		}
		if err != nil {
			return wrapCommandError(err)
		}

		fmt.Println(SuccessStyle.Render("Environment ready: ") + CmdStyle.Render(args[0]))
		if res.Environment.Status == envstate.StatusDegraded {
			fmt.Println(WarningStyle.Render("Some components failed; the environment is degraded. See above."))
		}
		fmt.Println(SubtitleStyle.Render("Activate it with: ") + CmdStyle.Render("devenv switch "+args[0]))
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVarP(&setupProjectPath, "path", "p", ".", "project directory to set up")
}

// printSetupReport prints one line per install task.
func printSetupReport(report *installer.Report) {
	if report == nil {
		return
	}
	for _, task := range report.Tasks {
		state := task.State()
		line := fmt.Sprintf("  %s %s", statusStyle(state.String()).Render(state.String()), task.Plugin)
		if task.Version != "" {
			line += " " + task.Version
		}
		if task.UsedFallback() {
			line += SubtitleStyle.Render(" (via fallback)")
		}
		if err := task.Err(); err != nil {
			line += "\n    " + VerboseStyle.Render(err.Error())
		}
		fmt.Println(line)
	}
}
