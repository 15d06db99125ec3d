// pkg/regedit/regedit.go - registry access used by the cleanup stages.
//
// Every path is relative to HKEY_LOCAL_MACHINE. Missing keys and values are
// reported as sysops.NotFound.

package regedit

import "strings"

// Registry is the subset of registry operations the agent needs.
type Registry interface {
	// SubKeyNames lists the immediate subkeys of path.
	SubKeyNames(path string) ([]string, error)
	// GetStrings reads a REG_MULTI_SZ value.
	GetStrings(path, name string) ([]string, error)
	// SetStrings writes a REG_MULTI_SZ value.
	SetStrings(path, name string, values []string) error
	// GetString reads a REG_SZ / REG_EXPAND_SZ value.
	GetString(path, name string) (string, error)
	// HasValue reports whether name exists under path, whatever its type.
	// A missing key is reported as false.
	HasValue(path, name string) (bool, error)
	// GetDWord reads a REG_DWORD value.
	GetDWord(path, name string) (uint32, error)
	// SetDWord writes a REG_DWORD value.
	SetDWord(path, name string, value uint32) error
	// DeleteValue removes a value.
	DeleteValue(path, name string) error
	// DeleteTree removes a key and everything below it.
	DeleteTree(path string) error
}

// Join builds a registry path from its parts, skipping empty ones.
func Join(parts ...string) string {
	var out []string
	for _, p := range parts {
		p = strings.Trim(p, `\`)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, `\`)
}
