package orchestrator

import (
	"fmt"

	"github.com/windowsadmins/pvagent/pkg/catalog"
	"github.com/windowsadmins/pvagent/pkg/devices"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/state"
)

// Installer installs each driver bundle once.
type Installer struct {
	flags      state.Store
	pkgs       devices.PackageManager
	os         osinfo.Info
	driverRoot string
}

// NewInstaller returns an Installer reading bundles from driverRoot.
func NewInstaller(flags state.Store, pkgs devices.PackageManager, os osinfo.Info, driverRoot string) *Installer {
	return &Installer{flags: flags, pkgs: pkgs, os: os, driverRoot: driverRoot}
}

// InstallDrivers installs every bundle whose milestone is unset. The first
// failure stops the run with that bundle's milestone still unset.
func (i *Installer) InstallDrivers() error {
	for _, b := range catalog.Bundles {
		done, err := i.flags.Get(b.Milestone)
		if err != nil {
			return fmt.Errorf("reading %s: %w", b.Milestone, err)
		}
		if done {
			continue
		}

		inf := b.InfPath(i.driverRoot, i.os.Is64Bit())
		logging.Info("Installing driver", "driver", b.Name, "inf", inf)
		if err := i.pkgs.Install(inf); err != nil {
			return fmt.Errorf("installing %s: %w", b.Name, err)
		}
		if err := i.flags.Set(b.Milestone); err != nil {
			return fmt.Errorf("setting %s: %w", b.Milestone, err)
		}
	}
	return nil
}
