package devices

import (
	"context"
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

var (
	// pnputil switched from -a/-i/-d/-f to the /verb syntax in Windows 10.
	verbSyntax = goversion.MustConstraints(goversion.NewConstraint(">= 10.0"))
	// /remove-device arrived in Windows 10 2004.
	removeDeviceVerb = goversion.MustConstraints(goversion.NewConstraint(">= 10.0.19041"))
)

// PnPUtil manages driver packages with pnputil.exe.
type PnPUtil struct {
	runner installer.Runner
	infDir string // %WINDIR%\INF
	tool   string
	ver    *goversion.Version
}

// NewPnPUtil returns a PackageManager that scans infDir for published
// packages and drives pnputil through runner, using the command syntax of
// the release info describes. A nil info or version assumes a current release.
func NewPnPUtil(runner installer.Runner, infDir string, info osinfo.Info) *PnPUtil {
	p := &PnPUtil{runner: runner, infDir: infDir, tool: installer.CommandPnPUtil}
	if info != nil {
		p.ver = info.Version()
	}
	return p
}

func (p *PnPUtil) legacy() bool {
	return p.ver != nil && !verbSyntax.Check(p.ver)
}

// CanRemoveDevices reports whether this pnputil can remove device nodes.
func (p *PnPUtil) CanRemoveDevices() bool {
	return p.ver == nil || removeDeviceVerb.Check(p.ver)
}

func (p *PnPUtil) deleteArgs(inf string) []string {
	if p.legacy() {
		return []string{"-f", "-d", inf}
	}
	return []string{"/delete-driver", inf, "/uninstall", "/force"}
}

func (p *PnPUtil) addArgs(infPath string) []string {
	if p.legacy() {
		return []string{"-i", "-a", infPath}
	}
	return []string{"/add-driver", infPath, "/install"}
}

// UninstallByHardwareID deletes each published package naming hardwareID.
func (p *PnPUtil) UninstallByHardwareID(hardwareID string) error {
	infs, err := FindOEMInfs(p.infDir, hardwareID)
	if err != nil {
		return sysops.Wrap("scan driver store", hardwareID, err)
	}
	if len(infs) == 0 {
		return sysops.NotFoundf("uninstall driver package", hardwareID)
	}

	for _, inf := range infs {
		res, err := p.runner.Run(context.Background(), p.tool, p.deleteArgs(inf)...)
		if err != nil {
			return sysops.Wrap("delete driver package", inf, err)
		}
		if !installer.Succeeded(res.ExitCode) {
			return sysops.WithKind("delete driver package", inf, sysops.Other,
				fmt.Errorf("pnputil exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Output)))
		}
		logging.Info("Deleted driver package", "hardware_id", hardwareID, "inf", inf)
	}
	return nil
}

// Install adds infPath to the driver store and installs it on matching devices.
func (p *PnPUtil) Install(infPath string) error {
	res, err := p.runner.Run(context.Background(), p.tool, p.addArgs(infPath)...)
	if err != nil {
		return sysops.Wrap("install driver package", infPath, err)
	}
	switch {
	case installer.Succeeded(res.ExitCode), res.ExitCode == installer.ExitNoMoreItems:
		logging.Info("Installed driver package", "inf", infPath, "exit_code", res.ExitCode)
		return nil
	default:
		return sysops.WithKind("install driver package", infPath, sysops.Other,
			fmt.Errorf("pnputil exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Output)))
	}
}

// removeDevice removes one device instance with pnputil.
func (p *PnPUtil) removeDevice(instanceID string) error {
	if !p.CanRemoveDevices() {
		return sysops.WithKind("remove device", instanceID, sysops.Other,
			fmt.Errorf("pnputil on %s cannot remove devices", p.ver))
	}
	res, err := p.runner.Run(context.Background(), p.tool, "/remove-device", instanceID)
	if err != nil {
		return sysops.Wrap("remove device", instanceID, err)
	}
	if !installer.Succeeded(res.ExitCode) {
		return sysops.WithKind("remove device", instanceID, sysops.Other,
			fmt.Errorf("pnputil exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Output)))
	}
	return nil
}
