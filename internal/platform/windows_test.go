// SPDX-License-Identifier: MPL-2.0

package platform

import "testing"

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	reserved := []string{"CON", "con", "Nul", "COM1", "lpt9", "con.toml"}
	for _, name := range reserved {
		if !IsWindowsReservedName(name) {
			t.Errorf("expected %q to be reserved", name)
		}
	}

	allowed := []string{"web", "console", "com10", "lpt", "my-env"}
	for _, name := range allowed {
		if IsWindowsReservedName(name) {
			t.Errorf("expected %q to be allowed", name)
		}
	}
}
