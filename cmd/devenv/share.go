// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
)

var (
	shareOutPath string
	importName   string
)

var shareCmd = &cobra.Command{
	Use:   "share <name>",
	Short: "Export an environment descriptor for another machine",
	Long: `Write a portable TOML descriptor of the environment to stdout (or a
file). Machine-local state is stripped; the importer rebuilds it with
'devenv import' followed by a rebuild on its own machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		out := cmd.OutOrStdout()
		if shareOutPath != "" {
			f, err := os.Create(shareOutPath)
			if err != nil {
				return wrapCommandError(fmt.Errorf("failed to create output file: %w", err))
			}
			defer f.Close()
			out = f
		}

		if err := eng.Share(cmd.Context(), envstate.EnvName(args[0]), out); err != nil {
			return wrapCommandError(err)
		}
		if shareOutPath != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), SuccessStyle.Render("Exported to ")+shareOutPath)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an environment descriptor shared from another machine",
	Long: `Create an environment from an exported descriptor. The import records
the declared languages and versions; run 'devenv setup' with the same
name afterwards to install the toolchains on this machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return wrapCommandError(fmt.Errorf("failed to open descriptor: %w", err))
		}
		defer f.Close()

		env, err := eng.Import(cmd.Context(), f, envstate.EnvName(importName))
		if err != nil {
			return wrapCommandError(err)
		}

		fmt.Println(SuccessStyle.Render("Imported ") + CmdStyle.Render(string(env.Name)))
		fmt.Println(SubtitleStyle.Render("Install its toolchains with: ") + CmdStyle.Render("devenv setup "+string(env.Name)))
		return nil
	},
}

func init() {
	shareCmd.Flags().StringVarP(&shareOutPath, "output", "o", "", "write the descriptor to a file instead of stdout")
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "rename the environment on import")
}
