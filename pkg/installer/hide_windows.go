//go:build windows

package installer

import (
	"os/exec"
	"syscall"
)

// CREATE_NO_WINDOW from the Win32 API.
const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
