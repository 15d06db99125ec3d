package regedit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/windowsadmins/pvagent/pkg/sysops"
)

type valueKind int

const (
	kindString valueKind = iota
	kindStrings
	kindDWord
)

type memValue struct {
	kind  valueKind
	str   string
	strs  []string
	dword uint32
}

type memKey struct {
	path   string
	values map[string]memValue
}

// Memory is an in-process registry. Key and value names are matched
// case-insensitively, like the Windows registry.
type Memory struct {
	mu   sync.Mutex
	keys map[string]*memKey
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*memKey)}
}

func norm(s string) string { return strings.ToLower(Join(s)) }

// CreateKey creates path and all of its parents.
func (m *Memory) CreateKey(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(path)
}

func (m *Memory) createLocked(path string) *memKey {
	parts := strings.Split(Join(path), `\`)
	var k *memKey
	for i := range parts {
		p := strings.Join(parts[:i+1], `\`)
		n := strings.ToLower(p)
		if existing, ok := m.keys[n]; ok {
			k = existing
			continue
		}
		k = &memKey{path: p, values: make(map[string]memValue)}
		m.keys[n] = k
	}
	return k
}

// KeyExists reports whether path exists.
func (m *Memory) KeyExists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[norm(path)]
	return ok
}

// ValueExists reports whether the value exists under path.
func (m *Memory) ValueExists(path, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[norm(path)]
	if !ok {
		return false
	}
	_, ok = k.values[strings.ToLower(name)]
	return ok
}

// HasValue reports whether the value exists under path.
func (m *Memory) HasValue(path, name string) (bool, error) {
	return m.ValueExists(path, name), nil
}

// PutString seeds a string value, creating the key if needed.
func (m *Memory) PutString(path, name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(path).values[strings.ToLower(name)] = memValue{kind: kindString, str: value}
}

func (m *Memory) lookup(op, path, name string) (memValue, error) {
	k, ok := m.keys[norm(path)]
	if !ok {
		return memValue{}, sysops.NotFoundf(op, path)
	}
	v, ok := k.values[strings.ToLower(name)]
	if !ok {
		return memValue{}, sysops.NotFoundf(op, Join(path, name))
	}
	return v, nil
}

// SubKeyNames lists the immediate subkeys of path in sorted order.
func (m *Memory) SubKeyNames(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent := norm(path)
	if _, ok := m.keys[parent]; !ok {
		return nil, sysops.NotFoundf("enumerate key", path)
	}
	var names []string
	depth := strings.Count(parent, `\`) + 1
	for n, k := range m.keys {
		if !strings.HasPrefix(n, parent+`\`) {
			continue
		}
		// Split the stored path rather than slicing it with the byte offsets
		// of its lowercase form, which can differ in length.
		parts := strings.Split(k.path, `\`)
		if len(parts) == depth+1 {
			names = append(names, parts[depth])
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetStrings reads a multi-string value.
func (m *Memory) GetStrings(path, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.lookup("read value", path, name)
	if err != nil {
		return nil, err
	}
	if v.kind != kindStrings {
		return nil, fmt.Errorf("read value %s: not a multi-string", Join(path, name))
	}
	return append([]string(nil), v.strs...), nil
}

// SetStrings writes a multi-string value to an existing key.
func (m *Memory) SetStrings(path, name string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[norm(path)]
	if !ok {
		return sysops.NotFoundf("write value", path)
	}
	k.values[strings.ToLower(name)] = memValue{kind: kindStrings, strs: append([]string(nil), values...)}
	return nil
}

// PutStrings seeds a multi-string value, creating the key if needed.
func (m *Memory) PutStrings(path, name string, values []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(path).values[strings.ToLower(name)] = memValue{kind: kindStrings, strs: append([]string(nil), values...)}
}

// GetString reads a string value.
func (m *Memory) GetString(path, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.lookup("read value", path, name)
	if err != nil {
		return "", err
	}
	if v.kind != kindString {
		return "", fmt.Errorf("read value %s: not a string", Join(path, name))
	}
	return v.str, nil
}

// GetDWord reads a DWORD value.
func (m *Memory) GetDWord(path, name string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.lookup("read value", path, name)
	if err != nil {
		return 0, err
	}
	if v.kind != kindDWord {
		return 0, fmt.Errorf("read value %s: not a DWORD", Join(path, name))
	}
	return v.dword, nil
}

// SetDWord writes a DWORD value to an existing key.
func (m *Memory) SetDWord(path, name string, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[norm(path)]
	if !ok {
		return sysops.NotFoundf("write value", path)
	}
	k.values[strings.ToLower(name)] = memValue{kind: kindDWord, dword: value}
	return nil
}

// PutDWord seeds a DWORD value, creating the key if needed.
func (m *Memory) PutDWord(path, name string, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(path).values[strings.ToLower(name)] = memValue{kind: kindDWord, dword: value}
}

// DeleteValue removes a value.
func (m *Memory) DeleteValue(path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup("delete value", path, name); err != nil {
		return err
	}
	delete(m.keys[norm(path)].values, strings.ToLower(name))
	return nil
}

// DeleteTree removes path and every key below it.
func (m *Memory) DeleteTree(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := norm(path)
	if _, ok := m.keys[root]; !ok {
		return sysops.NotFoundf("delete key", path)
	}
	for n := range m.keys {
		if n == root || strings.HasPrefix(n, root+`\`) {
			delete(m.keys, n)
		}
	}
	return nil
}
