//go:build windows

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sys/windows"

	"github.com/windowsadmins/pvagent/pkg/config"
	"github.com/windowsadmins/pvagent/pkg/devices"
	"github.com/windowsadmins/pvagent/pkg/files"
	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/msi"
	"github.com/windowsadmins/pvagent/pkg/orchestrator"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/services"
	"github.com/windowsadmins/pvagent/pkg/state"
)

func openStore(cfg *config.Configuration) (state.Store, error) {
	if cfg.StateBackend == config.BackendBadger {
		return state.NewBadgerStore(cfg.StatePath)
	}
	return state.NewRegistryStore(cfg.StatePath)
}

// newSystem binds the pipeline to the live machine.
func newSystem(cfg *config.Configuration, store state.Store) (orchestrator.System, string, error) {
	info, err := osinfo.Query()
	if err != nil {
		return orchestrator.System{}, "", err
	}
	driverDir, err := files.DriverDir()
	if err != nil {
		return orchestrator.System{}, "", fmt.Errorf("locating driver directory: %w", err)
	}
	windir, err := windows.GetWindowsDirectory()
	if err != nil {
		return orchestrator.System{}, "", fmt.Errorf("locating Windows directory: %w", err)
	}

	runner := installer.Exec{}
	pnp := devices.NewPnPUtil(runner, filepath.Join(windir, "INF"), info)
	return orchestrator.System{
		Flags:          store,
		Registry:       regedit.NewLocal(),
		Devices:        devices.NewSetupAPI(pnp),
		Packages:       pnp,
		MSIResolver:    msi.NewCOMResolver(),
		MSIUninstaller: msi.NewMsiExec(runner, time.Duration(cfg.MSIRetryIntervalSeconds)*time.Second),
		Services:       services.NewSCM(),
		Files:          files.NewLocal(),
		OS:             info,
	}, driverDir, nil
}

// checkAdmin fails unless the process token is in BUILTIN\Administrators.
func checkAdmin() error {
	var adminSid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&adminSid)
	if err != nil {
		return err
	}
	defer windows.FreeSid(adminSid)

	isMember, err := windows.Token(0).IsMember(adminSid)
	if err != nil {
		return err
	}
	if !isMember {
		return fmt.Errorf("process is not elevated")
	}
	return nil
}
