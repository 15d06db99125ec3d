// Package msi finds and removes Windows Installer products.
package msi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/retry"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// Resolver maps a product display name to its product code. An empty code
// with a nil error means the product is not installed.
type Resolver interface {
	ProductCode(displayName string) (string, error)
}

// Uninstaller removes a product by code, trying up to attempts times.
// Removing a product that is not installed returns a sysops NotFound error.
type Uninstaller interface {
	Uninstall(productCode string, attempts int) error
}

// MsiExec uninstalls products with msiexec.exe.
type MsiExec struct {
	runner   installer.Runner
	interval time.Duration
	tool     string
}

// NewMsiExec returns an Uninstaller waiting interval between attempts.
func NewMsiExec(runner installer.Runner, interval time.Duration) *MsiExec {
	return &MsiExec{runner: runner, interval: interval, tool: installer.CommandMsi}
}

// Uninstall runs a quiet, no-restart uninstall of productCode.
func (m *MsiExec) Uninstall(productCode string, attempts int) error {
	cfg := retry.RetryConfig{MaxRetries: attempts, InitialInterval: m.interval, Multiplier: 1}
	return retry.Retry(context.Background(), cfg, func() error {
		res, err := m.runner.Run(context.Background(), m.tool, "/x", productCode, "/qn", "/norestart")
		if err != nil {
			return err
		}
		switch {
		case installer.Succeeded(res.ExitCode):
			logging.Info("Uninstalled MSI product", "product_code", productCode, "exit_code", res.ExitCode)
			return nil
		case res.ExitCode == installer.ExitUnknownProduct:
			return retry.Permanent(sysops.NotFoundf("uninstall product", productCode))
		case res.ExitCode == installer.ExitInstallInProgress:
			logging.Debug("Windows Installer busy", "product_code", productCode, "msiexec_processes", installer.RunningMSIProcesses())
			fallthrough
		default:
			return fmt.Errorf("msiexec exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
		}
	})
}
