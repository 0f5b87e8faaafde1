// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for devenv.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/config"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "devenv",
		Short: "Per-project development environment manager",
		Long: TitleStyle.Render("devenv") + SubtitleStyle.Render(" - Per-project development environment manager") + `

devenv inspects a project directory, works out which languages and
tools it needs, installs the right toolchain versions through pluggable
version managers (nvm, pyenv, rustup, ...), and switches between named
environments atomically.

` + SubtitleStyle.Render("Quick Start:") + `
  1. cd into your project directory
  2. Run: devenv setup <name>
  3. Activate it with: devenv switch <name>

` + SubtitleStyle.Render("Examples:") + `
  devenv detect             Show what devenv finds in the current directory
  devenv setup web          Build an environment named 'web' for this project
  devenv switch web         Make 'web' the active environment
  devenv status             Health-check the active environment
  devenv list               List all environments`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/devenv/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig applies config-driven defaults that flags did not set.
func initRootConfig() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		return
	}
	if !verbose {
		verbose = cfg.UI.Verbose
	}
}

// loadConfig resolves configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadWithOptions(config.LoadOptions{ConfigFilePath: cfgFile})
	return cfg, err
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
