// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
)

var switchDeactivate bool

var switchCmd = &cobra.Command{
	Use:   "switch [name]",
	Short: "Make a named environment the active one",
	Long: `Atomically switch the active environment. The target is health-checked
before anything changes; if it fails verification, the previous
environment stays active. At most one switch runs at a time.

After switching, the environment's activation variables are printed as
shell export statements:

  eval "$(devenv switch web)"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		if switchDeactivate {
			if err := eng.Deactivate(cmd.Context()); err != nil {
				return wrapCommandError(err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), SuccessStyle.Render("Deactivated."))
			return nil
		}

		if len(args) != 1 {
			return wrapCommandError(fmt.Errorf("environment name required (or use --deactivate)"))
		}

		res, err := eng.Switch(cmd.Context(), envstate.EnvName(args[0]))
		if err != nil {
			return wrapCommandError(err)
		}

		// Status goes to stderr so stdout stays eval-safe.
		msg := SuccessStyle.Render("Switched to ") + CmdStyle.Render(args[0])
		if res.Previous != "" && res.Previous != res.Activated.Name {
			msg += SubtitleStyle.Render(" (was " + string(res.Previous) + ")")
		}
		fmt.Fprintln(cmd.ErrOrStderr(), msg)

		printExports(res.Activated.Activation)
		return nil
	},
}

func init() {
	switchCmd.Flags().BoolVar(&switchDeactivate, "deactivate", false, "deactivate the current environment instead of switching")
}

// printExports writes activation variables as shell exports in sorted order.
func printExports(activation map[string]string) {
	keys := make([]string, 0, len(activation))
	for k := range activation {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Printf("export %s=%q\n", k, activation[k])
	}
}
