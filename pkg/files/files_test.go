package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/pvagent/pkg/sysops"
)

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xenvbd.sys")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	l := NewLocal()
	require.NoError(t, l.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	err = l.Remove(path)
	assert.True(t, sysops.IsNotFound(err))
}

func TestRemoveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "XenTools")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "a.exe"), nil, 0644))

	l := NewLocal()
	require.NoError(t, l.RemoveDir(dir))
	assert.NoDirExists(t, dir)
	assert.True(t, sysops.IsNotFound(l.RemoveDir(dir)))
}

func TestHoldersOfUnopenedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idle.sys")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Empty(t, Holders(path))
}
