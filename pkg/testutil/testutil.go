// Package testutil provides recording fakes of the system collaborators.
// Every fake appends to a shared Journal so tests can assert on ordering
// across collaborators.
package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/windowsadmins/pvagent/pkg/devices"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/state"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// Journal is an ordered log of collaborator calls.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

// Record appends a formatted entry.
func (j *Journal) Record(format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the journal.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// WithPrefix returns the entries starting with prefix, in order.
func (j *Journal) WithPrefix(prefix string) []string {
	var out []string
	for _, e := range j.Entries() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries equal entry.
func (j *Journal) Count(entry string) int {
	n := 0
	for _, e := range j.Entries() {
		if e == entry {
			n++
		}
	}
	return n
}

// Reset clears the journal.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// Flags is an in-memory milestone store.
type Flags struct {
	J      *Journal
	set    map[state.Milestone]bool
	SetErr map[state.Milestone]error
}

// NewFlags returns an empty store recording into j.
func NewFlags(j *Journal) *Flags {
	return &Flags{J: j, set: map[state.Milestone]bool{}, SetErr: map[state.Milestone]error{}}
}

func (f *Flags) Get(m state.Milestone) (bool, error) { return f.set[m], nil }

func (f *Flags) Set(m state.Milestone) error {
	if err := f.SetErr[m]; err != nil {
		return err
	}
	f.J.Record("set %s", m)
	f.set[m] = true
	return nil
}

func (f *Flags) Close() error { return nil }

// Preset marks milestones as already done without journaling.
func (f *Flags) Preset(ms ...state.Milestone) {
	for _, m := range ms {
		f.set[m] = true
	}
}

// Registry journals mutations on top of the in-memory registry.
type Registry struct {
	*regedit.Memory
	J *Journal
}

// NewRegistry returns an empty journaling registry.
func NewRegistry(j *Journal) *Registry {
	return &Registry{Memory: regedit.NewMemory(), J: j}
}

func (r *Registry) SetStrings(path, name string, values []string) error {
	r.J.Record("reg set %s", regedit.Join(path, name))
	return r.Memory.SetStrings(path, name, values)
}

func (r *Registry) SetDWord(path, name string, value uint32) error {
	r.J.Record("reg set %s", regedit.Join(path, name))
	return r.Memory.SetDWord(path, name, value)
}

func (r *Registry) DeleteValue(path, name string) error {
	r.J.Record("reg delete value %s", regedit.Join(path, name))
	return r.Memory.DeleteValue(path, name)
}

func (r *Registry) DeleteTree(path string) error {
	r.J.Record("reg delete tree %s", path)
	return r.Memory.DeleteTree(path)
}

// Devices is a fake device tree. Present counts nodes per hardware id.
type Devices struct {
	J         *Journal
	Present   map[string]int
	OpenErr   error
	RemoveErr map[string]error
	Opened    int
	Closed    int
}

// NewDevices returns a tree with one node for each id.
func NewDevices(j *Journal, ids ...string) *Devices {
	d := &Devices{J: j, Present: map[string]int{}, RemoveErr: map[string]error{}}
	for _, id := range ids {
		d.Present[id]++
	}
	return d
}

func (d *Devices) Open() (devices.Set, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.Opened++
	d.J.Record("devices open")
	return &deviceSet{d: d}, nil
}

// Remaining returns the ids that still have nodes.
func (d *Devices) Remaining() []string {
	var ids []string
	for id, n := range d.Present {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

type deviceSet struct {
	d      *Devices
	closed bool
}

func (s *deviceSet) Remove(hardwareID string, force bool) error {
	if s.closed {
		return fmt.Errorf("remove %s on closed set", hardwareID)
	}
	s.d.J.Record("device remove %s", hardwareID)
	if err := s.d.RemoveErr[hardwareID]; err != nil {
		return err
	}
	if s.d.Present[hardwareID] == 0 {
		return sysops.NotFoundf("remove device", hardwareID)
	}
	s.d.Present[hardwareID] = 0
	return nil
}

func (s *deviceSet) Close() error {
	if !s.closed {
		s.closed = true
		s.d.Closed++
		s.d.J.Record("devices close")
	}
	return nil
}

// Packages is a fake driver store keyed by hardware id.
type Packages struct {
	J            *Journal
	Installed    map[string]bool
	UninstallErr map[string]error
	InstallErr   map[string]error
}

// NewPackages returns a store holding a package for each id.
func NewPackages(j *Journal, ids ...string) *Packages {
	p := &Packages{J: j, Installed: map[string]bool{}, UninstallErr: map[string]error{}, InstallErr: map[string]error{}}
	for _, id := range ids {
		p.Installed[id] = true
	}
	return p
}

func (p *Packages) UninstallByHardwareID(hardwareID string) error {
	p.J.Record("package uninstall %s", hardwareID)
	if err := p.UninstallErr[hardwareID]; err != nil {
		return err
	}
	if !p.Installed[hardwareID] {
		return sysops.NotFoundf("uninstall driver package", hardwareID)
	}
	delete(p.Installed, hardwareID)
	return nil
}

func (p *Packages) Install(infPath string) error {
	p.J.Record("package install %s", infPath)
	return p.InstallErr[infPath]
}

// MSI fakes both the product resolver and the uninstaller.
type MSI struct {
	J            *Journal
	Products     map[string]string // display name -> product code
	ResolveErr   map[string]error
	UninstallErr map[string]error
}

// NewMSI returns a fake with the given name/code pairs installed.
func NewMSI(j *Journal, products map[string]string) *MSI {
	if products == nil {
		products = map[string]string{}
	}
	return &MSI{J: j, Products: products, ResolveErr: map[string]error{}, UninstallErr: map[string]error{}}
}

func (m *MSI) ProductCode(displayName string) (string, error) {
	m.J.Record("msi resolve %s", displayName)
	if err := m.ResolveErr[displayName]; err != nil {
		return "", err
	}
	return m.Products[displayName], nil
}

func (m *MSI) Uninstall(productCode string, attempts int) error {
	m.J.Record("msi uninstall %s x%d", productCode, attempts)
	if err := m.UninstallErr[productCode]; err != nil {
		return err
	}
	for name, code := range m.Products {
		if code == productCode {
			delete(m.Products, name)
			return nil
		}
	}
	return sysops.NotFoundf("uninstall product", productCode)
}

// Services is a fake service control manager.
type Services struct {
	J         *Journal
	Existing  map[string]bool
	DeleteErr map[string]error
}

// NewServices returns a manager with the named services registered.
func NewServices(j *Journal, names ...string) *Services {
	s := &Services{J: j, Existing: map[string]bool{}, DeleteErr: map[string]error{}}
	for _, n := range names {
		s.Existing[strings.ToLower(n)] = true
	}
	return s
}

func (s *Services) Delete(name string) error {
	s.J.Record("service delete %s", name)
	if err := s.DeleteErr[name]; err != nil {
		return err
	}
	if !s.Existing[strings.ToLower(name)] {
		return sysops.NotFoundf("open service", name)
	}
	delete(s.Existing, strings.ToLower(name))
	return nil
}

// Files is a fake filesystem of plain paths. Paths in InUse refuse deletion.
type Files struct {
	J        *Journal
	Existing map[string]bool
	InUse    map[string]bool
	Err      map[string]error
}

// NewFiles returns a filesystem holding paths. Directories are plain
// entries too; RemoveDir also drops everything below.
func NewFiles(j *Journal, paths ...string) *Files {
	f := &Files{J: j, Existing: map[string]bool{}, InUse: map[string]bool{}, Err: map[string]error{}}
	for _, p := range paths {
		f.Existing[p] = true
	}
	return f
}

func (f *Files) Remove(path string) error {
	f.J.Record("file remove %s", path)
	return f.remove(path, false)
}

func (f *Files) RemoveDir(path string) error {
	f.J.Record("dir remove %s", path)
	return f.remove(path, true)
}

func (f *Files) remove(path string, tree bool) error {
	if err := f.Err[path]; err != nil {
		return err
	}
	if !f.Existing[path] {
		return sysops.NotFoundf("remove", path)
	}
	if f.InUse[path] {
		return sysops.InUsef("remove", path, fmt.Errorf("sharing violation"))
	}
	delete(f.Existing, path)
	if tree {
		for p := range f.Existing {
			if strings.HasPrefix(p, path+`\`) {
				delete(f.Existing, p)
			}
		}
	}
	return nil
}
