// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/config"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/engine"
)

// buildEngine constructs the orchestration engine from the resolved config.
func buildEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: config.AppName})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return engine.New(cfg, engine.EngineOptions{Logger: logger})
}
