// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage devenv configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, path, err := config.LoadWithOptions(config.LoadOptions{ConfigFilePath: cfgFile})
		if err != nil {
			return wrapCommandError(err)
		}

		source := "built-in defaults"
		if path != "" {
			source = path
		}
		fmt.Println(SubtitleStyle.Render("# resolved from " + source))
		fmt.Print(config.GenerateCUE(cfg))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := config.CreateDefaultConfig(); err != nil {
			return wrapCommandError(err)
		}
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return wrapCommandError(err)
		}
		cfgPath := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
		fmt.Println(SuccessStyle.Render("Configuration ready: ") + cfgPath)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
