// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInstallConfig is the sentinel error wrapped by InvalidInstallConfigError.
	ErrInvalidInstallConfig = errors.New("invalid install config")
)

// Script runner selection values for InstallConfig.Runner.
const (
	RunnerNative  = "native"
	RunnerVirtual = "virtual"
)

type (
	// Config holds the global devenv settings consumed by the orchestration
	// engine. Zero-valued paths mean "use the platform default".
	Config struct {
		// EnvironmentsDir holds one descriptor file per named environment.
		EnvironmentsDir string `mapstructure:"environments_dir"`
		// PluginsDir holds external plugin descriptors keyed by plugin name.
		PluginsDir string `mapstructure:"plugins_dir"`
		// CacheDir is the shared install/download cache.
		CacheDir string `mapstructure:"cache_dir"`
		// AutoUpdate lets providers refresh their tool indexes before installing.
		AutoUpdate bool `mapstructure:"auto_update"`

		Install InstallConfig `mapstructure:"install"`
		UI      UIConfig      `mapstructure:"ui"`
	}

	// InstallConfig tunes the dependency installer. The defaults are
	// operational choices, not protocol constants; see DefaultConfig.
	InstallConfig struct {
		// Concurrency bounds the install/probe worker pool.
		Concurrency int `mapstructure:"concurrency"`
		// RetryAttempts caps retries for transient install failures.
		RetryAttempts int `mapstructure:"retry_attempts"`
		// RetryBackoff is the base for exponential backoff.
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`
		// TaskTimeout bounds a single install task.
		TaskTimeout time.Duration `mapstructure:"task_timeout"`
		// Runner selects how provider scripts execute: RunnerNative uses the
		// system shell, RunnerVirtual uses the built-in interpreter for hosts
		// where shell discovery fails.
		Runner string `mapstructure:"runner"`
	}

	// UIConfig holds presentation preferences.
	UIConfig struct {
		Verbose bool `mapstructure:"verbose"`
	}

	// InvalidInstallConfigError is returned when install settings are out of
	// range. It wraps ErrInvalidInstallConfig for errors.Is() compatibility.
	InvalidInstallConfigError struct {
		Field string
		Value any
	}
)

// Error implements the error interface.
func (e *InvalidInstallConfigError) Error() string {
	return fmt.Sprintf("invalid install config: %s = %v", e.Field, e.Value)
}

// Unwrap returns ErrInvalidInstallConfig for errors.Is() compatibility.
func (e *InvalidInstallConfigError) Unwrap() error { return ErrInvalidInstallConfig }

// DefaultConfig returns the built-in defaults. The installer tuning values
// (concurrency 4, 3 retries, 500ms base backoff, 10m task timeout) are
// documented defaults and overridable via config.cue.
func DefaultConfig() *Config {
	return &Config{
		AutoUpdate: false,
		Install: InstallConfig{
			Concurrency:   4,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
			TaskTimeout:   10 * time.Minute,
			Runner:        RunnerNative,
		},
		UI: UIConfig{Verbose: false},
	}
}

// Validate checks constraints the CUE schema cannot express on decoded values.
func (c *Config) Validate() error {
	if c.Install.Concurrency < 1 {
		return &InvalidInstallConfigError{Field: "concurrency", Value: c.Install.Concurrency}
	}
	if c.Install.RetryAttempts < 0 {
		return &InvalidInstallConfigError{Field: "retry_attempts", Value: c.Install.RetryAttempts}
	}
	if c.Install.RetryBackoff < 0 {
		return &InvalidInstallConfigError{Field: "retry_backoff", Value: c.Install.RetryBackoff}
	}
	if c.Install.TaskTimeout < 0 {
		return &InvalidInstallConfigError{Field: "task_timeout", Value: c.Install.TaskTimeout}
	}
	if c.Install.Runner != "" && c.Install.Runner != RunnerNative && c.Install.Runner != RunnerVirtual {
		return &InvalidInstallConfigError{Field: "runner", Value: c.Install.Runner}
	}
	return nil
}
