// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Show what devenv detects in a project directory",
	Long: `Scan a project directory for language, framework, and tooling
signatures (manifests, lockfiles, version files, CI hints) and print the
resulting profile. Detection is read-only: nothing is installed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		eng, err := buildEngine()
		if err != nil {
			return wrapCommandError(err)
		}

		profile, err := eng.Detect(cmd.Context(), root)
		if err != nil {
			return wrapCommandError(err)
		}

		if profile.Empty() {
			fmt.Println(SubtitleStyle.Render("Nothing recognized in " + profile.Root))
			return nil
		}

		fmt.Println(TitleStyle.Render("Project profile") + SubtitleStyle.Render(" ("+profile.Root+")"))
		printVersionMap("Languages", profile.Languages)
		printVersionMap("Frameworks", profile.Frameworks)
		printVersionMap("Tools", profile.Tools)

		if verbose {
			fmt.Println(SubtitleStyle.Render("\nEvidence:"))
			for _, d := range profile.Detections {
				fmt.Fprintf(os.Stdout, "  %s %s (%.0f%% from %s)\n",
					VerboseStyle.Render(string(d.Kind)), d.Name, d.Confidence*100, d.Source)
			}
		}
		return nil
	},
}

// printVersionMap prints one profile section in sorted order.
func printVersionMap(title string, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Println(SubtitleStyle.Render(title + ":"))
	for _, name := range names {
		version := entries[name]
		if version == "" {
			version = "(no version declared)"
		}
		fmt.Printf("  %s %s\n", CmdStyle.Render(name), version)
	}
}
