//go:build windows

package state

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// DefaultRegistryPath is where the registry backend keeps its flags.
const DefaultRegistryPath = `SOFTWARE\PVAgent\State`

var procRegFlushKey = windows.NewLazySystemDLL("advapi32.dll").NewProc("RegFlushKey")

// RegistryStore keeps one DWORD per milestone under an HKLM key.
type RegistryStore struct {
	key registry.Key
}

// NewRegistryStore opens (or creates) the state key.
func NewRegistryStore(path string) (*RegistryStore, error) {
	if path == "" {
		path = DefaultRegistryPath
	}
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return nil, fmt.Errorf("opening state key %s: %w", path, err)
	}
	return &RegistryStore{key: k}, nil
}

// Get reports whether m has been set.
func (s *RegistryStore) Get(m Milestone) (bool, error) {
	v, _, err := s.key.GetIntegerValue(string(m))
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", m, err)
	}
	return v == 1, nil
}

// Set marks m as done and flushes the key so the write survives a reset.
func (s *RegistryStore) Set(m Milestone) error {
	if err := s.key.SetDWordValue(string(m), 1); err != nil {
		return fmt.Errorf("set %s: %w", m, err)
	}
	if rc, _, _ := procRegFlushKey.Call(uintptr(s.key)); rc != 0 {
		return fmt.Errorf("flush %s: %w", m, windows.Errno(rc))
	}
	return nil
}

// Close releases the key.
func (s *RegistryStore) Close() error {
	return s.key.Close()
}
