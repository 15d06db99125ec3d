//go:build !windows

package installer

import "os/exec"

func hideWindow(*exec.Cmd) {}
