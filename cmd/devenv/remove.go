// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
)

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete an environment",
	Long: `Delete an environment's descriptor. Removing the active environment
deactivates it first. Installed toolchains stay in the shared cache;
other environments may still use them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		if err := eng.Remove(cmd.Context(), envstate.EnvName(args[0])); err != nil {
			return wrapCommandError(err)
		}
		fmt.Println(SuccessStyle.Render("Removed ") + CmdStyle.Render(args[0]))
		return nil
	},
}
