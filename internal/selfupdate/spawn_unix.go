// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package selfupdate

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr runs the child in a new session so it survives the
// parent and its controlling terminal.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
