// SPDX-License-Identifier: MPL-2.0

// Package config loads and persists the global devenv settings: filesystem
// roots for environments, plugins, and the install cache, plus installer
// tuning. Config files are CUE, validated against an embedded schema and
// merged into Viper over the built-in defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/cueutil"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "devenv"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the devenv configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the devenv data root (~/.devenv on all platforms). The
// environments, plugins, and cache directories default to subdirectories
// of this root unless overridden in the config file.
func DataDir() (string, error) {
	if dataDirOverride != "" {
		return dataDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName), nil
}

// LoadOptions controls config resolution.
type LoadOptions struct {
	// ConfigFilePath loads this exact file instead of searching default locations.
	ConfigFilePath string
	// ConfigDirPath overrides the platform config directory.
	ConfigDirPath string
}

// Load resolves the config from default locations.
func Load() (*Config, error) {
	cfg, _, err := LoadWithOptions(LoadOptions{})
	return cfg, err
}

// LoadWithOptions performs option-driven config loading. It returns the
// decoded config and the path of the file it came from ("" when only
// defaults applied).
func LoadWithOptions(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("environments_dir", defaults.EnvironmentsDir)
	v.SetDefault("plugins_dir", defaults.PluginsDir)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("auto_update", defaults.AutoUpdate)
	v.SetDefault("install.concurrency", defaults.Install.Concurrency)
	v.SetDefault("install.retry_attempts", defaults.Install.RetryAttempts)
	v.SetDefault("install.retry_backoff", defaults.Install.RetryBackoff)
	v.SetDefault("install.task_timeout", defaults.Install.TaskTimeout)
	v.SetDefault("install.runner", defaults.Install.Runner)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		// An explicit config file is used exclusively and must exist.
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'devenv config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			var err error
			cfgDir, err = ConfigDir()
			if err != nil {
				return nil, "", err
			}
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.NewErrorContext().
					WithOperation("load configuration").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the configuration values match the expected schema").
					Wrap(err).
					BuildError()
			}
			resolvedPath = cuePath
		}
		// If no config file found, use defaults (no error).
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	if err := applyPathDefaults(&cfg); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

// applyPathDefaults fills unset filesystem roots from the data directory.
func applyPathDefaults(cfg *Config) error {
	if cfg.EnvironmentsDir != "" && cfg.PluginsDir != "" && cfg.CacheDir != "" {
		return nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return err
	}
	if cfg.EnvironmentsDir == "" {
		cfg.EnvironmentsDir = filepath.Join(dataDir, "environments")
	}
	if cfg.PluginsDir == "" {
		cfg.PluginsDir = filepath.Join(dataDir, "plugins")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(dataDir, "cache")
	}
	return nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This decodes to map[string]any (not a struct) because the values must
// merge into Viper's config map on top of defaults, and config fields are
// optional so validation uses Concrete(false).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return nil // File exists
	}

	return writeConfigFile(cfgPath, DefaultConfig())
}

// Save writes the current configuration to file
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	return writeConfigFile(cfgPath, cfg)
}

func writeConfigFile(path string, cfg *Config) error {
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// devenv configuration file\n\n")

	if cfg.EnvironmentsDir != "" {
		sb.WriteString(fmt.Sprintf("environments_dir: %q\n", cfg.EnvironmentsDir))
	}
	if cfg.PluginsDir != "" {
		sb.WriteString(fmt.Sprintf("plugins_dir: %q\n", cfg.PluginsDir))
	}
	if cfg.CacheDir != "" {
		sb.WriteString(fmt.Sprintf("cache_dir: %q\n", cfg.CacheDir))
	}
	sb.WriteString(fmt.Sprintf("auto_update: %v\n", cfg.AutoUpdate))

	sb.WriteString("\ninstall: {\n")
	sb.WriteString(fmt.Sprintf("\tconcurrency: %d\n", cfg.Install.Concurrency))
	sb.WriteString(fmt.Sprintf("\tretry_attempts: %d\n", cfg.Install.RetryAttempts))
	sb.WriteString(fmt.Sprintf("\tretry_backoff: %q\n", cfg.Install.RetryBackoff.String()))
	sb.WriteString(fmt.Sprintf("\ttask_timeout: %q\n", cfg.Install.TaskTimeout.String()))
	if cfg.Install.Runner != "" {
		sb.WriteString(fmt.Sprintf("\trunner: %q\n", cfg.Install.Runner))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", cfg.UI.Verbose))
	sb.WriteString("}\n")

	return sb.String()
}
