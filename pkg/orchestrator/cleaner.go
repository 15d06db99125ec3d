// pkg/orchestrator/cleaner.go - the resumable removal pipeline.
//
// SystemClean walks a fixed sequence of stages. Each stage is gated by a
// milestone in the state store: a stage whose milestone is set is skipped,
// and a milestone is only set after its stage has finished without a fatal
// error. A killed or failed run therefore resumes at the first unfinished
// stage on the next call.

package orchestrator

import (
	"fmt"

	"github.com/windowsadmins/pvagent/pkg/devices"
	"github.com/windowsadmins/pvagent/pkg/files"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/msi"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/services"
	"github.com/windowsadmins/pvagent/pkg/state"
)

// Default repeat counts.
const (
	DefaultPasses      = 2
	DefaultMSIAttempts = 5
)

// System bundles the collaborators the pipeline drives.
type System struct {
	Flags          state.Store
	Registry       regedit.Registry
	Devices        devices.Enumerator
	Packages       devices.PackageManager
	MSIResolver    msi.Resolver
	MSIUninstaller msi.Uninstaller
	Services       services.Manager
	Files          files.Remover
	OS             osinfo.Info
}

// CleanOptions tunes the pipeline. Zero values take the defaults.
type CleanOptions struct {
	Passes       int    // Repeats of the device and MSI removal block
	MSIAttempts  int    // Attempts per MSI uninstall
	ForceRemoval bool   // Force device removal when the class installer refuses
	DriverDir    string // Directory holding the .sys files
}

// Cleaner removes the PV driver stack.
type Cleaner struct {
	sys  System
	opts CleanOptions
}

// NewCleaner returns a Cleaner over sys.
func NewCleaner(sys System, opts CleanOptions) *Cleaner {
	if opts.Passes <= 0 {
		opts.Passes = DefaultPasses
	}
	if opts.MSIAttempts <= 0 {
		opts.MSIAttempts = DefaultMSIAttempts
	}
	return &Cleaner{sys: sys, opts: opts}
}

// SystemClean advances the removal pipeline as far as it can. It returns
// false only on the call that first sets the reboot gate; the caller must
// call again (normally after a reboot). true means every stage is done.
func (c *Cleaner) SystemClean() (bool, error) {
	if err := c.once(state.RemovedFromFilters, c.removeFromFilters); err != nil {
		return false, err
	}
	if err := c.once(state.BootStartDisabled, c.disableBootStart); err != nil {
		return false, err
	}

	proceed, err := c.sys.Flags.Get(state.ProceedWithSystemClean)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", state.ProceedWithSystemClean, err)
	}
	if !proceed {
		if err := c.sys.Flags.Set(state.ProceedWithSystemClean); err != nil {
			return false, fmt.Errorf("setting %s: %w", state.ProceedWithSystemClean, err)
		}
		logging.Info("Filters and boot start handled, pausing before device removal")
		return false, nil
	}

	// Stacks do not always detach on the first attempt, so the removal
	// block runs a fixed number of times and its milestones are only set
	// on the last pass.
	for i := 0; i < c.opts.Passes; i++ {
		last := i == c.opts.Passes-1
		if err := c.repeated(state.DrvsAndDevsUninstalled, i, last, c.uninstallDriversAndDevices); err != nil {
			return false, err
		}
		if err := c.repeated(state.MSIsUninstalled, i, last, c.uninstallMSIs); err != nil {
			return false, err
		}
	}

	if err := c.once(state.CleanedUp, c.cleanUp); err != nil {
		return false, err
	}
	return true, nil
}

// once runs stage unless m is set, then sets m.
func (c *Cleaner) once(m state.Milestone, stage func() error) error {
	done, err := c.sys.Flags.Get(m)
	if err != nil {
		return fmt.Errorf("reading %s: %w", m, err)
	}
	if done {
		logging.Debug("Stage already complete", "milestone", m)
		return nil
	}

	logging.Info("Starting stage", "milestone", m)
	if err := stage(); err != nil {
		logging.Error("Stage failed", "milestone", m, "error", err)
		return fmt.Errorf("%s: %w", m, err)
	}
	if err := c.sys.Flags.Set(m); err != nil {
		return fmt.Errorf("setting %s: %w", m, err)
	}
	logging.Info("Completed stage", "milestone", m)
	return nil
}

// repeated runs one pass of stage unless m is set; m is set after the last pass.
func (c *Cleaner) repeated(m state.Milestone, pass int, last bool, stage func() error) error {
	done, err := c.sys.Flags.Get(m)
	if err != nil {
		return fmt.Errorf("reading %s: %w", m, err)
	}
	if done {
		return nil
	}

	logging.Info("Starting pass", "milestone", m, "pass", pass+1, "passes", c.opts.Passes)
	if err := stage(); err != nil {
		logging.Error("Pass failed", "milestone", m, "pass", pass+1, "error", err)
		return fmt.Errorf("%s (pass %d): %w", m, pass+1, err)
	}
	if !last {
		return nil
	}
	if err := c.sys.Flags.Set(m); err != nil {
		return fmt.Errorf("setting %s: %w", m, err)
	}
	logging.Info("Completed stage", "milestone", m)
	return nil
}

func (c *Cleaner) cleanUp() error {
	if err := c.cleanUpLegacy(); err != nil {
		return err
	}
	if err := c.cleanUpServices(); err != nil {
		return err
	}
	return c.cleanUpDriverFiles()
}
