// pkg/installer/installer.go - running the system installer tools (msiexec,
// pnputil, shutdown) and interpreting their exit codes.

package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/pvagent/pkg/logging"
)

var (
	CommandMsi      = filepath.Join(os.Getenv("WINDIR"), "system32", "msiexec.exe")
	CommandPnPUtil  = filepath.Join(os.Getenv("WINDIR"), "system32", "pnputil.exe")
	CommandShutdown = filepath.Join(os.Getenv("WINDIR"), "system32", "shutdown.exe")
)

// Exit codes shared by msiexec, pnputil and friends.
const (
	ExitSuccess           = 0
	ExitNoMoreItems       = 259  // pnputil: nothing to update
	ExitUnknownProduct    = 1605 // msiexec: product is not installed
	ExitInstallInProgress = 1618 // msiexec: another installation is running
	ExitRebootInitiated   = 1641
	ExitRebootRequired    = 3010
)

// Succeeded reports whether code means the action completed, possibly
// pending a reboot.
func Succeeded(code int) bool {
	switch code {
	case ExitSuccess, ExitRebootRequired, ExitRebootInitiated:
		return true
	}
	return false
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Output   string
}

// Runner starts a command and waits for it. A non-zero exit code is not an
// error; err is reserved for failures to run the command at all.
type Runner interface {
	Run(ctx context.Context, command string, args ...string) (Result, error)
}

// Exec runs commands as hidden child processes.
type Exec struct{}

// Run executes command with args.
func (Exec) Run(ctx context.Context, command string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	hideWindow(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.Debug("Running command", "command", command, "args", strings.Join(args, " "))
	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Output: out.String()}, nil
	}
	if err != nil {
		return Result{ExitCode: -1, Output: out.String()}, fmt.Errorf("command execution failed: %w", err)
	}
	return Result{ExitCode: 0, Output: out.String()}, nil
}

// RunningMSIProcesses counts msiexec.exe processes. msiexec reports 1618
// while another one holds the installer mutex.
func RunningMSIProcesses() int {
	procs, err := process.Processes()
	if err != nil {
		return 0
	}
	n := 0
	for _, p := range procs {
		if name, err := p.Name(); err == nil && strings.EqualFold(name, "msiexec.exe") {
			n++
		}
	}
	return n
}
