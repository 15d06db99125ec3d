// pkg/agent/agent.go - the install agent run: clean up the old stack, then
// install the new one, reporting whether a reboot has to happen in between.

package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/logging"
)

// Outcome is the result of a successful run.
type Outcome int

const (
	// Complete means cleanup and installation have both finished.
	Complete Outcome = iota
	// RebootRequired means the run stopped at the reboot gate.
	RebootRequired
)

func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case RebootRequired:
		return "reboot-required"
	default:
		return "unknown"
	}
}

// ExitCode maps an outcome to the process exit code, following the
// Windows Installer convention of 3010 for "reboot required".
func (o Outcome) ExitCode() int {
	if o == RebootRequired {
		return installer.ExitRebootRequired
	}
	return installer.ExitSuccess
}

// Cleaner is the removal pipeline.
type Cleaner interface {
	SystemClean() (bool, error)
}

// Installer is the driver installation step.
type Installer interface {
	InstallDrivers() error
}

// Options controls a run.
type Options struct {
	SkipCleanup    bool
	SkipInstall    bool
	SkipRebootGate bool // keep calling the cleaner past the gate in this process
	MaxCleanCalls  int  // bound on cleaner calls when SkipRebootGate is set
}

// Agent sequences cleanup and installation.
type Agent struct {
	cleaner   Cleaner
	installer Installer
	opts      Options
}

// New returns an Agent.
func New(c Cleaner, i Installer, opts Options) *Agent {
	if opts.MaxCleanCalls <= 0 {
		opts.MaxCleanCalls = 3
	}
	return &Agent{cleaner: c, installer: i, opts: opts}
}

// Run performs one agent invocation.
func (a *Agent) Run(ctx context.Context) (Outcome, error) {
	if !a.opts.SkipCleanup {
		done, err := a.clean(ctx)
		if err != nil {
			return Complete, err
		}
		if !done {
			logging.Info("Cleanup paused at the reboot gate")
			return RebootRequired, nil
		}
	}

	if a.opts.SkipInstall {
		return Complete, nil
	}
	if err := ctx.Err(); err != nil {
		return Complete, err
	}
	logging.Info("Installing drivers")
	if err := a.installer.InstallDrivers(); err != nil {
		return Complete, fmt.Errorf("installing drivers: %w", err)
	}
	logging.Info("Drivers installed")
	return Complete, nil
}

func (a *Agent) clean(ctx context.Context) (bool, error) {
	for call := 1; ; call++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		logging.Info("Running system cleanup", "call", call)
		done, err := a.cleaner.SystemClean()
		if err != nil {
			return false, fmt.Errorf("system cleanup: %w", err)
		}
		if done {
			logging.Info("System cleanup complete")
			return true, nil
		}
		if !a.opts.SkipRebootGate || call >= a.opts.MaxCleanCalls {
			return false, nil
		}
	}
}

// Rebooter restarts the machine.
type Rebooter interface {
	Reboot(ctx context.Context, delay time.Duration, reason string) error
}

// ShutdownRebooter schedules a restart with shutdown.exe.
type ShutdownRebooter struct {
	runner installer.Runner
}

// NewShutdownRebooter returns a Rebooter running commands through runner.
func NewShutdownRebooter(runner installer.Runner) *ShutdownRebooter {
	return &ShutdownRebooter{runner: runner}
}

// Reboot schedules a planned restart after delay.
func (s *ShutdownRebooter) Reboot(ctx context.Context, delay time.Duration, reason string) error {
	secs := int(delay / time.Second)
	// p:2:17 is "planned, operating system: hot fix"
	res, err := s.runner.Run(ctx, installer.CommandShutdown,
		"/r", "/t", strconv.Itoa(secs), "/d", "p:2:17", "/c", reason)
	if err != nil {
		return fmt.Errorf("scheduling reboot: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("shutdown.exe exited with %d: %s", res.ExitCode, res.Output)
	}
	logging.Info("Reboot scheduled", "delay_seconds", secs)
	return nil
}
