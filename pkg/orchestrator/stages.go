package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/windowsadmins/pvagent/pkg/catalog"
	"github.com/windowsadmins/pvagent/pkg/filters"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// absent swallows NotFound, logging what was already gone.
func absent(err error, what string) error {
	if sysops.IsNotFound(err) {
		logging.Debug("Already absent", "target", what)
		return nil
	}
	return err
}

func (c *Cleaner) removeFromFilters() error {
	return filters.RemoveFromClassFilters(c.sys.Registry, catalog.ClassRoot, catalog.FilterDrivers, catalog.FilterValues)
}

// disableBootStart demotes every stack service that has a Start value to
// manual start and clears the emulated-device unplug requests.
func (c *Cleaner) disableBootStart() error {
	reg := c.sys.Registry
	for _, svc := range catalog.BootStartServices {
		key := regedit.Join(catalog.ServicesRoot, svc)
		present, err := reg.HasValue(key, catalog.StartValue)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		if err := reg.SetDWord(key, catalog.StartValue, catalog.ManualStart); err != nil {
			return err
		}
		logging.Info("Demoted service to manual start", "service", svc)
	}

	unplug := regedit.Join(catalog.ServicesRoot, catalog.UnplugKey)
	for _, name := range catalog.UnplugValues {
		if err := absent(reg.DeleteValue(unplug, name), regedit.Join(unplug, name)); err != nil {
			return err
		}
	}
	return nil
}

// uninstallDriversAndDevices holds one device set open for the whole pass
// and walks the catalog in order, leaves before their parents.
func (c *Cleaner) uninstallDriversAndDevices() (err error) {
	set, err := c.sys.Devices.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := set.Close(); cerr != nil && err == nil {
			err = sysops.Wrap("close device set", "", cerr)
		}
	}()

	for _, hwid := range catalog.HardwareIDs {
		if err := absent(c.sys.Packages.UninstallByHardwareID(hwid), hwid); err != nil {
			return err
		}
		if err := absent(set.Remove(hwid, c.opts.ForceRemoval), hwid); err != nil {
			return err
		}
	}
	return nil
}

// uninstallMSIs resolves every legacy product before removing any of them.
func (c *Cleaner) uninstallMSIs() error {
	var codes []string
	for _, name := range catalog.LegacyMSIs {
		code, err := c.sys.MSIResolver.ProductCode(name)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", name, err)
		}
		if code == "" {
			continue
		}
		logging.Info("Found legacy MSI", "product", name, "product_code", code)
		codes = append(codes, code)
	}

	for _, code := range codes {
		if err := absent(c.sys.MSIUninstaller.Uninstall(code, c.opts.MSIAttempts), code); err != nil {
			return err
		}
	}
	return nil
}

// cleanUpLegacy removes the registry trees and install directory of the
// older tools release. Anything already gone is fine.
func (c *Cleaner) cleanUpLegacy() error {
	software := catalog.SoftwareRoot
	if c.sys.OS.Is64Bit() {
		software = regedit.Join(catalog.SoftwareRoot, catalog.Wow6432Node)
	}
	uninstall := regedit.Join(software, catalog.UninstallSubKey, catalog.LegacyProduct)
	vendor := regedit.Join(software, catalog.VendorSubKey)

	if err := absent(c.sys.Registry.DeleteTree(uninstall), uninstall); err != nil {
		return err
	}

	dir, err := c.sys.Registry.GetString(vendor, catalog.InstallDirValue)
	switch {
	case sysops.IsNotFound(err):
		logging.Debug("No legacy install directory recorded", "key", vendor)
	case err != nil:
		return err
	case dir == "":
	default:
		if err := absent(c.sys.Files.RemoveDir(dir), dir); err != nil {
			return err
		}
		logging.Info("Removed legacy install directory", "path", dir)
	}

	return absent(c.sys.Registry.DeleteTree(vendor), vendor)
}

// cleanUpServices deletes the stack's services. The bus services stay on
// Windows Server 2008 and 2008 R2.
func (c *Cleaner) cleanUpServices() error {
	names := append([]string(nil), catalog.CleanupServices...)
	if osinfo.IsServer2008(c.sys.OS) {
		logging.Info("Keeping bus services on Server 2008", "services", catalog.BusServices)
	} else {
		names = append(names, catalog.BusServices...)
	}

	for _, name := range names {
		if err := absent(c.sys.Services.Delete(name), name); err != nil {
			return err
		}
	}
	return nil
}

// cleanUpDriverFiles deletes leftover .sys files. Files still loaded are
// left for a later run.
func (c *Cleaner) cleanUpDriverFiles() error {
	for _, name := range catalog.DriverFiles {
		path := filepath.Join(c.opts.DriverDir, name+catalog.DriverFileSuffix)
		err := absent(c.sys.Files.Remove(path), path)
		if sysops.IsInUse(err) {
			logging.Warn("Driver file in use, leaving it", "path", path)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
