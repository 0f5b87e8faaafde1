// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/BibhabenduMukherjee/dev-env-manager/cmd/devenv"

func main() {
	cmd.Execute()
}
