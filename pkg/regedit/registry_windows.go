//go:build windows

package regedit

import (
	"errors"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// Local is the HKEY_LOCAL_MACHINE registry of this machine.
type Local struct{}

// NewLocal returns the machine registry.
func NewLocal() *Local { return &Local{} }

func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, registry.ErrNotExist) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
		return sysops.WithKind(op, target, sysops.NotFound, err)
	}
	return sysops.WithKind(op, target, sysops.Other, err)
}

func open(path string, access uint32) (registry.Key, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, access)
	if err != nil {
		return 0, classify("open key", path, err)
	}
	return k, nil
}

// SubKeyNames lists the immediate subkeys of path.
func (Local) SubKeyNames(path string) ([]string, error) {
	k, err := open(path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(0)
	if err != nil {
		return nil, classify("enumerate key", path, err)
	}
	return names, nil
}

// GetStrings reads a REG_MULTI_SZ value.
func (Local) GetStrings(path, name string) ([]string, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	vals, _, err := k.GetStringsValue(name)
	if err != nil {
		return nil, classify("read value", Join(path, name), err)
	}
	return vals, nil
}

// SetStrings writes a REG_MULTI_SZ value.
func (Local) SetStrings(path, name string, values []string) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	return classify("write value", Join(path, name), k.SetStringsValue(name, values))
}

// GetString reads a REG_SZ or REG_EXPAND_SZ value.
func (Local) GetString(path, name string) (string, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	val, valType, err := k.GetStringValue(name)
	if err != nil {
		return "", classify("read value", Join(path, name), err)
	}
	if valType == registry.EXPAND_SZ {
		if expanded, err := registry.ExpandString(val); err == nil {
			val = expanded
		}
	}
	return val, nil
}

// HasValue reports whether name exists under path, whatever its type.
func (Local) HasValue(path, name string) (bool, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		if sysops.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	defer k.Close()

	_, _, err = k.GetValue(name, nil)
	switch {
	case err == nil, errors.Is(err, registry.ErrShortBuffer), errors.Is(err, windows.ERROR_MORE_DATA):
		return true, nil
	case errors.Is(err, registry.ErrNotExist):
		return false, nil
	default:
		return false, classify("read value", Join(path, name), err)
	}
}

// GetDWord reads a REG_DWORD value.
func (Local) GetDWord(path, name string) (uint32, error) {
	k, err := open(path, registry.QUERY_VALUE)
	if err != nil {
		return 0, err
	}
	defer k.Close()

	val, _, err := k.GetIntegerValue(name)
	if err != nil {
		return 0, classify("read value", Join(path, name), err)
	}
	return uint32(val), nil
}

// SetDWord writes a REG_DWORD value.
func (Local) SetDWord(path, name string, value uint32) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	return classify("write value", Join(path, name), k.SetDWordValue(name, value))
}

// DeleteValue removes a value.
func (Local) DeleteValue(path, name string) error {
	k, err := open(path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	return classify("delete value", Join(path, name), k.DeleteValue(name))
}

// DeleteTree removes path and all of its subkeys, deepest first.
func (l Local) DeleteTree(path string) error {
	children, err := l.SubKeyNames(path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := l.DeleteTree(Join(path, child)); err != nil && !sysops.IsNotFound(err) {
			return err
		}
	}
	return classify("delete key", path, registry.DeleteKey(registry.LOCAL_MACHINE, path))
}
