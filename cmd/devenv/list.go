// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		envs, err := eng.List(cmd.Context())
		if err != nil {
			return wrapCommandError(err)
		}
		if len(envs) == 0 {
			fmt.Println(SubtitleStyle.Render("No environments yet. Create one with: ") + CmdStyle.Render("devenv setup <name>"))
			return nil
		}

		for _, env := range envs {
			marker := "  "
			if env.Status.String() == "active" {
				marker = SuccessStyle.Render("* ")
			}
			fmt.Printf("%s%s  %s  %s\n",
				marker,
				CmdStyle.Render(string(env.Name)),
				statusStyle(env.Status.String()).Render(env.Status.String()),
				SubtitleStyle.Render(env.ProjectRoot))
		}
		return nil
	},
}
