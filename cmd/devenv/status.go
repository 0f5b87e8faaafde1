// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
)

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Health-check an environment",
	Long: `Probe every toolchain of an environment (the active one by default)
and report per-component health, an aggregate score, and suggested
follow-ups. Probes run concurrently; one broken component never hides
the state of the others.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		var name envstate.EnvName
		if len(args) == 1 {
			name = envstate.EnvName(args[0])
		}

		status, err := eng.Status(cmd.Context(), name)
		if err != nil {
			return wrapCommandError(err)
		}

		env := status.Environment
		header := TitleStyle.Render(string(env.Name))
		if status.Active {
			header += SuccessStyle.Render(" (active)")
		}
		fmt.Println(header)
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("status:"), statusStyle(env.Status.String()).Render(env.Status.String()))
		fmt.Printf("  %s %s\n", SubtitleStyle.Render("project:"), env.ProjectRoot)

		h := status.Health
		fmt.Printf("  %s %s (score %.2f)\n",
			SubtitleStyle.Render("health:"), statusStyle(h.Status.String()).Render(h.Status.String()), h.Score)

		for _, rec := range h.Records {
			line := fmt.Sprintf("    %s %s",
				statusStyle(rec.Status.String()).Render(rec.Status.String()), rec.Plugin)
			if rec.ObservedVersion != "" {
				line += " " + rec.ObservedVersion
			}
			if rec.Detail != "" {
				line += SubtitleStyle.Render(" - " + rec.Detail)
			}
			fmt.Println(line)
		}

		if len(h.Recommendations) > 0 {
			fmt.Println(SubtitleStyle.Render("\nRecommendations:"))
			for _, r := range h.Recommendations {
				fmt.Println("  " + WarningStyle.Render("!") + " " + r)
			}
		}
		return nil
	},
}
