// pkg/files/files.go - file deletion with absence and contention classified.

package files

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// Remover deletes files and directory trees.
type Remover interface {
	Remove(path string) error
	RemoveDir(path string) error
}

// Local removes from the real filesystem.
type Local struct{}

// NewLocal returns a Remover for this machine.
func NewLocal() *Local { return &Local{} }

func classify(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return sysops.WithKind(op, path, sysops.NotFound, err)
	case isInUse(err):
		return sysops.WithKind(op, path, sysops.InUse, err)
	default:
		return sysops.WithKind(op, path, sysops.Other, err)
	}
}

// Remove deletes a single file.
func (Local) Remove(path string) error {
	err := classify("remove file", path, os.Remove(path))
	if sysops.IsInUse(err) {
		if holders := Holders(path); len(holders) > 0 {
			logging.Debug("File is held open", "path", path, "processes", strings.Join(holders, ","))
		}
	}
	return err
}

// RemoveDir deletes path and everything below it. A missing directory is
// reported as NotFound rather than silently succeeding.
func (Local) RemoveDir(path string) error {
	if _, err := os.Stat(path); err != nil {
		return classify("remove directory", path, err)
	}
	return classify("remove directory", path, os.RemoveAll(path))
}

// Holders names the processes that have path open. It is best effort and
// only used for diagnostics.
func Holders(path string) []string {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}
	var names []string
	for _, p := range procs {
		open, err := p.OpenFiles()
		if err != nil {
			continue
		}
		for _, f := range open {
			if strings.EqualFold(f.Path, path) {
				name, _ := p.Name()
				names = append(names, name)
				break
			}
		}
	}
	return names
}
