// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/viberails/viberails/cmd/viberails"

func main() {
	cmd.Execute()
}
