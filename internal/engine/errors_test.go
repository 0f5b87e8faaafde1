// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/detect"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/installer"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

func TestClassify_KindMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"ambiguous detection", &detect.AmbiguousDetectionError{Language: "python"}, KindDetectionAmbiguous},
		{"plugin not found", &plugin.NotFoundError{Name: "zig"}, KindPluginNotFound},
		{"version unsupported", &plugin.VersionUnsupportedError{Name: "node"}, KindVersionUnsupported},
		{"switch in progress", &envstate.SwitchInProgressError{Requested: "web"}, KindSwitchInProgress},
		{"activation failed", &envstate.ActivationFailedError{Name: "web", Err: errors.New("probe")}, KindActivationFailed},
		{"not activatable", &envstate.NotActivatableError{Name: "web", Status: envstate.StatusFailed}, KindActivationFailed},
		{"env not found", &envstate.NotFoundError{Name: "ghost"}, KindEnvNotFound},
		{"env name taken", &envstate.NameTakenError{Name: "web"}, KindEnvNameTaken},
		{"dependency failed", &installer.DependencyFailedError{Plugin: "pip", Dependency: "python"}, KindInstallFailed},
		{"unclassified", errors.New("mystery"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			// The original cause stays reachable through the envelope.
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_NilAndPassthrough(t *testing.T) {
	t.Parallel()

	require.NoError(t, classify(nil))

	wrapped := classify(&plugin.NotFoundError{Name: "zig"})
	assert.Same(t, wrapped, classify(wrapped))
}
