//go:build windows

package logging

import "golang.org/x/sys/windows"

// enableColors enables ANSI colors for the Windows console.
func enableColors() {
	handle := windows.Handle(windows.STD_OUTPUT_HANDLE)
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
		_ = windows.SetConsoleMode(handle, mode)
	}
}
