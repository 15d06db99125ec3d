//go:build windows

package services

import (
	"errors"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// SCM deletes services through the service control manager.
type SCM struct{}

// NewSCM returns a Manager backed by the service control manager.
func NewSCM() *SCM { return &SCM{} }

// Delete marks the service for deletion. Kernel drivers are not stopped;
// the registration disappears after the next reboot.
func (SCM) Delete(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return sysops.Wrap("connect to service manager", name, err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
		return sysops.WithKind("open service", name, sysops.NotFound, err)
	}
	if err != nil {
		return sysops.Wrap("open service", name, err)
	}
	defer s.Close()

	err = s.Delete()
	if errors.Is(err, windows.ERROR_SERVICE_MARKED_FOR_DELETE) {
		return nil
	}
	return sysops.Wrap("delete service", name, err)
}
