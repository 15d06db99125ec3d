// pkg/catalog/catalog.go - static reference data for the PV driver stack.

package catalog

import (
	"path/filepath"

	"github.com/windowsadmins/pvagent/pkg/state"
)

// HardwareIDs lists every PV device node that can be present on a system.
// The ordering is deliberate: device trees are walked from children to the
// root, so a parent is never removed while its children still exist.
var HardwareIDs = []string{
	`XENVIF\VEN_XS0001&DEV_NET`,
	`XENVIF\VEN_XS0002&DEV_NET`,
	`XENVIF\DEVICE`,

	`XENBUS\VEN_XS0001&DEV_VIF`,
	`XENBUS\VEN_XS0002&DEV_VIF`,
	`XEN\VIF`,
	`XENBUS\CLASS&VIF`,
	`XENBUS\CLASS_VIF`,

	`XENBUS\VEN_XS0001&DEV_VBD`,
	`XENBUS\VEN_XS0002&DEV_VBD`,
	`XENBUS\CLASS&VBD`,
	`XENBUS\CLASS_VBD`,

	`XENBUS\VEN_XS0001&DEV_IFACE`,
	`XENBUS\VEN_XS0002&DEV_IFACE`,
	`XENBUS\CLASS&IFACE`,
	`XENBUS\CLASS_IFACE`,

	`PCI\VEN_5853&DEV_0001`,
	`PCI\VEN_5853&DEV_0002`,
	`PCI\VEN_fffd&DEV_0101`,

	`ROOT\XENEVTCHN`,
}

// Registry locations, relative to HKEY_LOCAL_MACHINE.
const (
	ClassRoot    = `SYSTEM\CurrentControlSet\Control\Class`
	ServicesRoot = `SYSTEM\CurrentControlSet\Services`
)

// FilterDrivers are the stack's class filter service names.
var FilterDrivers = []string{"xenfilt", "scsifilt"}

// FilterValues are the class key values holding filter lists.
var FilterValues = []string{"LowerFilters", "UpperFilters"}

// BootStartServices are demoted to manual start before removal.
var BootStartServices = []string{
	"XENBUS", "xenfilt", "xeniface", "xenlite",
	"xennet", "xenvbd", "xenvif", "xennet6",
	"xenutil", "xenevtchn",
}

// StartValue is the service Start value and ManualStart the demoted type.
const (
	StartValue  = "Start"
	ManualStart = 3
)

// UnplugKey holds emulated-device unplug requests left by xenfilt.
const UnplugKey = `xenfilt\Unplug`

// UnplugValues are removed from UnplugKey when present.
var UnplugValues = []string{"DISKS", "NICS"}

// CleanupServices are always deleted during the final stage.
var CleanupServices = []string{
	"xeniface", "xenlite", "xennet", "xenvbd",
	"xenvif", "xennet6", "xenutil", "xenevtchn",
}

// BusServices are deleted too, except on Windows Server 2008 and 2008 R2,
// which expect their registry entries when the drivers are reinstalled
// straight away.
var BusServices = []string{"XENBUS", "xenfilt"}

// DriverFiles are the .sys basenames removed from the system driver directory.
var DriverFiles = []string{
	"xen", "xenbus", "xencrsh", "xenfilt",
	"xeniface", "xennet", "xenvbd", "xenvif",
	"xennet6", "xenutil", "xenevtchn",
}

// LegacyMSIs are display names of packages from earlier tools releases.
var LegacyMSIs = []string{
	"Citrix XenServer VSS Provider",
	"Citrix Xen Windows x64 PV Drivers",
	"Citrix Xen Windows x86 PV Drivers",
	"Citrix XenServer Tools Installer",
}

// Legacy vendor registry layout, relative to SOFTWARE (or SOFTWARE\Wow6432Node).
const (
	UninstallSubKey  = `Microsoft\Windows\CurrentVersion\Uninstall`
	LegacyProduct    = "Citrix XenTools"
	VendorSubKey     = `Citrix\XenTools`
	InstallDirValue  = "Install_Dir"
	Wow6432Node      = "Wow6432Node"
	SoftwareRoot     = "SOFTWARE"
	DriverFileSuffix = ".sys"
)

// Bundle is one driver package shipped with the agent.
type Bundle struct {
	Name      string
	Milestone state.Milestone
}

// Bundles lists the drivers installed by the agent. Installation order does
// not matter; the platform installer resolves dependencies between them.
var Bundles = []Bundle{
	{Name: "xennet", Milestone: state.XenNetInstalled},
	{Name: "xenvif", Milestone: state.XenVifInstalled},
	{Name: "xenvbd", Milestone: state.XenVbdInstalled},
	{Name: "xeniface", Milestone: state.XenIfaceInstalled},
	{Name: "xenbus", Milestone: state.XenBusInstalled},
}

// ArchDir returns the per-architecture subfolder name.
func ArchDir(is64 bool) string {
	if is64 {
		return "x64"
	}
	return "x86"
}

// InfPath returns root\<name>\<arch>\<name>.inf.
func (b Bundle) InfPath(root string, is64 bool) string {
	return filepath.Join(root, b.Name, ArchDir(is64), b.Name+".inf")
}
