package devices

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

type scriptedRunner struct {
	codes []int
	calls []string
}

func (r *scriptedRunner) Run(_ context.Context, command string, args ...string) (installer.Result, error) {
	r.calls = append(r.calls, strings.Join(args, " "))
	code := 0
	if len(r.codes) > 0 {
		code, r.codes = r.codes[0], r.codes[1:]
	}
	return installer.Result{ExitCode: code, Output: "pnputil output"}, nil
}

func TestUninstallByHardwareID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oem7.inf"), []byte(xenvifINF), 0644))

	r := &scriptedRunner{}
	p := NewPnPUtil(r, dir, nil)
	require.NoError(t, p.UninstallByHardwareID(`XENBUS\VEN_XS0001&DEV_VIF`))
	assert.Equal(t, []string{"/delete-driver oem7.inf /uninstall /force"}, r.calls)

	err := p.UninstallByHardwareID(`ROOT\XENEVTCHN`)
	assert.True(t, sysops.IsNotFound(err))
}

func TestUninstallFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oem7.inf"), []byte(xenvifINF), 0644))

	p := NewPnPUtil(&scriptedRunner{codes: []int{5}}, dir, nil)
	err := p.UninstallByHardwareID(`XENBUS\VEN_XS0001&DEV_VIF`)
	require.Error(t, err)
	assert.Equal(t, sysops.Other, sysops.KindOf(err))
	assert.Contains(t, err.Error(), "exited with 5")
}

func TestInstall(t *testing.T) {
	for _, code := range []int{0, 259, 3010} {
		r := &scriptedRunner{codes: []int{code}}
		require.NoError(t, NewPnPUtil(r, "", nil).Install(`D:\xenvbd\x64\xenvbd.inf`), "exit code %d", code)
		assert.Equal(t, []string{`/add-driver D:\xenvbd\x64\xenvbd.inf /install`}, r.calls)
	}

	err := NewPnPUtil(&scriptedRunner{codes: []int{1}}, "", nil).Install(`D:\xenvbd\x64\xenvbd.inf`)
	assert.Error(t, err)
}

func TestRemoveDevice(t *testing.T) {
	r := &scriptedRunner{}
	require.NoError(t, NewPnPUtil(r, "", nil).removeDevice(`XENBUS\VEN_XS0001&DEV_VIF\_`))
	assert.Equal(t, []string{`/remove-device XENBUS\VEN_XS0001&DEV_VIF\_`}, r.calls)
}

func mustOS(t *testing.T, ver string) *osinfo.Static {
	t.Helper()
	info, err := osinfo.NewStatic(true, true, ver)
	require.NoError(t, err)
	return info
}

func TestLegacySyntaxBeforeWindows10(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oem7.inf"), []byte(xenvifINF), 0644))

	for _, ver := range []string{"6.0.6002", "6.1.7601", "6.3.9600"} {
		r := &scriptedRunner{}
		p := NewPnPUtil(r, dir, mustOS(t, ver))
		require.NoError(t, p.UninstallByHardwareID(`XENBUS\VEN_XS0001&DEV_VIF`))
		require.NoError(t, p.Install(`D:\xenvbd\x64\xenvbd.inf`))
		assert.Equal(t, []string{"-f -d oem7.inf", `-i -a D:\xenvbd\x64\xenvbd.inf`}, r.calls, ver)
		assert.False(t, p.CanRemoveDevices(), ver)
	}
}

func TestVerbSyntaxOnWindows10(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oem7.inf"), []byte(xenvifINF), 0644))

	r := &scriptedRunner{}
	p := NewPnPUtil(r, dir, mustOS(t, "10.0.17763"))
	require.NoError(t, p.UninstallByHardwareID(`XENBUS\VEN_XS0001&DEV_VIF`))
	require.NoError(t, p.Install(`D:\xenvbd\x64\xenvbd.inf`))
	assert.Equal(t, []string{"/delete-driver oem7.inf /uninstall /force", `/add-driver D:\xenvbd\x64\xenvbd.inf /install`}, r.calls)
	assert.False(t, p.CanRemoveDevices())
	assert.True(t, NewPnPUtil(r, dir, mustOS(t, "10.0.19041")).CanRemoveDevices())
}

func TestRemoveDeviceUnavailableOnOldReleases(t *testing.T) {
	r := &scriptedRunner{}
	err := NewPnPUtil(r, "", mustOS(t, "6.1.7601")).removeDevice(`XENBUS\VEN_XS0001&DEV_VIF\_`)
	require.Error(t, err)
	assert.Equal(t, sysops.Other, sysops.KindOf(err))
	assert.Empty(t, r.calls)
}
