package orchestrator

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/pvagent/pkg/catalog"
	"github.com/windowsadmins/pvagent/pkg/devices"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/state"
	"github.com/windowsadmins/pvagent/pkg/sysops"
	"github.com/windowsadmins/pvagent/pkg/testutil"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const (
	driverDir  = `C:\Windows\System32\drivers`
	installDir = `C:\Program Files (x86)\Citrix\XenTools`
	diskClass  = `{4d36e967-e325-11ce-bfc1-08002be10318}`
)

var legacyProducts = map[string]string{
	"Citrix XenServer VSS Provider":     "{A0000000-0000-0000-0000-000000000001}",
	"Citrix Xen Windows x64 PV Drivers": "{A0000000-0000-0000-0000-000000000002}",
}

type rig struct {
	j     *testutil.Journal
	flags *testutil.Flags
	reg   *testutil.Registry
	devs  *testutil.Devices
	pkgs  *testutil.Packages
	msi   *testutil.MSI
	svcs  *testutil.Services
	files *testutil.Files
	os    *osinfo.Static
	opts  CleanOptions
}

func driverFile(name string) string {
	return filepath.Join(driverDir, name+catalog.DriverFileSuffix)
}

// newRig returns a 64-bit Server 2019 guest with the whole stack installed.
func newRig(t *testing.T) *rig {
	t.Helper()
	j := &testutil.Journal{}
	info, err := osinfo.NewStatic(true, true, "10.0.17763")
	require.NoError(t, err)

	r := &rig{
		j:     j,
		flags: testutil.NewFlags(j),
		reg:   testutil.NewRegistry(j),
		devs:  testutil.NewDevices(j, catalog.HardwareIDs...),
		pkgs:  testutil.NewPackages(j, catalog.HardwareIDs...),
		msi:   testutil.NewMSI(j, copyMap(legacyProducts)),
		svcs:  testutil.NewServices(j, append(append([]string{}, catalog.CleanupServices...), catalog.BusServices...)...),
		os:    info,
		opts:  CleanOptions{DriverDir: driverDir},
	}

	var paths []string
	for _, f := range catalog.DriverFiles {
		paths = append(paths, driverFile(f))
	}
	paths = append(paths, installDir, installDir+`\xenservice.exe`)
	r.files = testutil.NewFiles(j, paths...)

	mem := r.reg.Memory
	mem.PutStrings(regedit.Join(catalog.ClassRoot, diskClass), "UpperFilters", []string{"foo", "xenfilt", "bar"})
	mem.PutStrings(regedit.Join(catalog.ClassRoot, diskClass), "LowerFilters", []string{"SCSIFILT"})
	mem.CreateKey(regedit.Join(catalog.ClassRoot, "{4d36e972-e325-11ce-bfc1-08002be10318}"))
	for _, svc := range catalog.BootStartServices {
		mem.PutDWord(regedit.Join(catalog.ServicesRoot, svc), catalog.StartValue, 0)
	}
	mem.PutString(regedit.Join(catalog.ServicesRoot, "xenlite"), "ImagePath", `system32\drivers\xenlite.sys`)
	mem.PutDWord(regedit.Join(catalog.ServicesRoot, catalog.UnplugKey), "DISKS", 1)
	mem.PutDWord(regedit.Join(catalog.ServicesRoot, catalog.UnplugKey), "NICS", 1)

	wow := `SOFTWARE\Wow6432Node`
	mem.CreateKey(regedit.Join(wow, catalog.UninstallSubKey, catalog.LegacyProduct, "Sub"))
	mem.PutString(regedit.Join(wow, catalog.VendorSubKey), catalog.InstallDirValue, installDir)
	mem.CreateKey(regedit.Join(wow, catalog.VendorSubKey, "Settings"))
	return r
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *rig) system() System {
	return System{
		Flags:          r.flags,
		Registry:       r.reg,
		Devices:        r.devs,
		Packages:       r.pkgs,
		MSIResolver:    r.msi,
		MSIUninstaller: r.msi,
		Services:       r.svcs,
		Files:          r.files,
		OS:             r.os,
	}
}

func (r *rig) cleaner() *Cleaner { return NewCleaner(r.system(), r.opts) }

func (r *rig) isSet(t *testing.T, m state.Milestone) bool {
	t.Helper()
	v, err := r.flags.Get(m)
	require.NoError(t, err)
	return v
}

func TestFirstCallStopsAtGate(t *testing.T) {
	r := newRig(t)

	done, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, []string{
		"set " + string(state.RemovedFromFilters),
		"set " + string(state.BootStartDisabled),
		"set " + string(state.ProceedWithSystemClean),
	}, r.j.WithPrefix("set "))

	upper, err := r.reg.GetStrings(regedit.Join(catalog.ClassRoot, diskClass), "UpperFilters")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, upper)
	lower, err := r.reg.GetStrings(regedit.Join(catalog.ClassRoot, diskClass), "LowerFilters")
	require.NoError(t, err)
	assert.Empty(t, lower)

	for _, svc := range catalog.BootStartServices {
		start, err := r.reg.GetDWord(regedit.Join(catalog.ServicesRoot, svc), catalog.StartValue)
		require.NoError(t, err)
		assert.Equal(t, uint32(catalog.ManualStart), start, svc)
	}
	assert.False(t, r.reg.ValueExists(regedit.Join(catalog.ServicesRoot, catalog.UnplugKey), "DISKS"))
	assert.False(t, r.reg.ValueExists(regedit.Join(catalog.ServicesRoot, catalog.UnplugKey), "NICS"))

	assert.Empty(t, r.j.WithPrefix("device"))
	assert.Empty(t, r.j.WithPrefix("package"))
	assert.Empty(t, r.j.WithPrefix("msi"))
	assert.Empty(t, r.j.WithPrefix("service"))
	assert.Empty(t, r.j.WithPrefix("file"))
	assert.Len(t, r.devs.Remaining(), len(catalog.HardwareIDs))
}

func TestBootStartSkipsServicesWithoutStartValue(t *testing.T) {
	r := newRig(t)
	r.reg.Memory.DeleteTree(regedit.Join(catalog.ServicesRoot, "xenlite"))
	r.reg.Memory.CreateKey(regedit.Join(catalog.ServicesRoot, "xenlite"))
	r.reg.Memory.DeleteTree(regedit.Join(catalog.ServicesRoot, "xennet6"))

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)

	assert.False(t, r.reg.ValueExists(regedit.Join(catalog.ServicesRoot, "xenlite"), catalog.StartValue))
	assert.False(t, r.reg.KeyExists(regedit.Join(catalog.ServicesRoot, "xennet6")))
	assert.Zero(t, r.j.Count(`reg set `+regedit.Join(catalog.ServicesRoot, "xenlite", "Start")))
}

func TestBootStartOverwritesStartOfAnyType(t *testing.T) {
	r := newRig(t)
	key := regedit.Join(catalog.ServicesRoot, "xenlite")
	r.reg.Memory.PutString(key, catalog.StartValue, "0")

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)

	start, err := r.reg.GetDWord(key, catalog.StartValue)
	require.NoError(t, err)
	assert.Equal(t, uint32(catalog.ManualStart), start)
}

func TestSecondCallCompletes(t *testing.T) {
	r := newRig(t)
	c := r.cleaner()

	done, err := c.SystemClean()
	require.NoError(t, err)
	require.False(t, done)

	done, err = c.SystemClean()
	require.NoError(t, err)
	assert.True(t, done)

	for _, m := range []state.Milestone{
		state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
		state.DrvsAndDevsUninstalled, state.MSIsUninstalled, state.CleanedUp,
	} {
		assert.True(t, r.isSet(t, m), m)
		assert.Equal(t, 1, r.j.Count("set "+string(m)), m)
	}

	assert.Empty(t, r.devs.Remaining())
	assert.Empty(t, r.pkgs.Installed)
	assert.Empty(t, r.msi.Products)
	assert.Empty(t, r.svcs.Existing)
	assert.Empty(t, r.files.Existing)
	assert.False(t, r.reg.KeyExists(`SOFTWARE\Wow6432Node\Citrix\XenTools`))
	assert.False(t, r.reg.KeyExists(`SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall\Citrix XenTools`))

	// Further calls are no-ops.
	r.j.Reset()
	done, err = c.SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, r.j.Entries())
}

func TestRemovalBlockRunsTwice(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)

	done, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, 2, r.devs.Opened)
	assert.Equal(t, 2, r.devs.Closed)
	for _, id := range catalog.HardwareIDs {
		assert.Equal(t, 2, r.j.Count("device remove "+id), id)
		assert.Equal(t, 2, r.j.Count("package uninstall "+id), id)
	}
	for _, name := range catalog.LegacyMSIs {
		assert.Equal(t, 2, r.j.Count("msi resolve "+name), name)
	}

	// Milestones land only after the second pass.
	entries := r.j.Entries()
	lastOpen := lastIndex(entries, "devices open")
	assert.Greater(t, index(entries, "set "+string(state.DrvsAndDevsUninstalled)), lastOpen)
}

func TestRemovalOrder(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	r.opts.Passes = 1

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)

	var want []string
	want = append(want, "devices open")
	for _, id := range catalog.HardwareIDs {
		want = append(want, "package uninstall "+id, "device remove "+id)
	}
	want = append(want, "devices close")

	var got []string
	for _, e := range r.j.Entries() {
		if e == "devices open" || e == "devices close" || hasAnyPrefix(e, "package uninstall ", "device remove ") {
			got = append(got, e)
		}
	}
	assert.Equal(t, want, got)
}

func TestPassesDoNotInterleave(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)

	var seq []string
	for _, e := range r.j.Entries() {
		if e == "devices open" || e == "devices close" || hasAnyPrefix(e, "msi resolve ") {
			seq = append(seq, e)
		}
	}
	// open, close, MSI pass, open, close, MSI pass
	require.Equal(t, "devices open", seq[0])
	require.Equal(t, "devices close", seq[1])
	require.Equal(t, "devices open", seq[2+len(catalog.LegacyMSIs)])
	require.Equal(t, "devices close", seq[3+len(catalog.LegacyMSIs)])
}

func TestDeviceSetClosedOnFailure(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	boom := errors.New("class installer failed")
	r.devs.RemoveErr[catalog.HardwareIDs[3]] = boom

	done, err := r.cleaner().SystemClean()
	assert.False(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, r.devs.Opened)
	assert.Equal(t, 1, r.devs.Closed)
	assert.False(t, r.isSet(t, state.DrvsAndDevsUninstalled))
	assert.Empty(t, r.j.WithPrefix("msi"), "pipeline must stop at the failing stage")
	assert.Zero(t, r.j.Count("device remove "+catalog.HardwareIDs[4]))
}

func TestForceRemovalIsPassedThrough(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	r.opts.ForceRemoval = true
	rec := &forceRecorder{Devices: r.devs}

	sys := r.system()
	sys.Devices = rec
	_, err := NewCleaner(sys, r.opts).SystemClean()
	require.NoError(t, err)
	assert.True(t, rec.sawForce)
}

func TestFailedSecondPassRedoesBothPasses(t *testing.T) {
	r := newRig(t)
	c := r.cleaner()
	_, err := c.SystemClean()
	require.NoError(t, err)

	// Second call: the MSI pass fails on its second iteration.
	flaky := &flakyUninstaller{failOn: len(legacyProducts) + 1}
	sys := r.system()
	sys.MSIUninstaller = flaky
	_, err = NewCleaner(sys, r.opts).SystemClean()
	require.Error(t, err)
	assert.True(t, r.isSet(t, state.DrvsAndDevsUninstalled))
	assert.False(t, r.isSet(t, state.MSIsUninstalled))
	assert.False(t, r.isSet(t, state.CleanedUp))

	// Third call repeats the whole MSI block: every name resolved in both passes.
	r.j.Reset()
	done, err := c.SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
	for _, name := range catalog.LegacyMSIs {
		assert.Equal(t, 2, r.j.Count("msi resolve "+name), name)
	}
	assert.Empty(t, r.j.WithPrefix("device"), "finished stages are not repeated")
	assert.Equal(t, 1, r.j.Count("set "+string(state.MSIsUninstalled)))
}

func TestMSIResolveBeforeUninstall(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	r.opts.Passes = 1

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)

	msiCalls := r.j.WithPrefix("msi ")
	require.Len(t, msiCalls, len(catalog.LegacyMSIs)+len(legacyProducts))
	for i, name := range catalog.LegacyMSIs {
		assert.Equal(t, "msi resolve "+name, msiCalls[i])
	}
	for _, e := range msiCalls[len(catalog.LegacyMSIs):] {
		assert.Contains(t, e, " x5")
	}
}

func TestMSIResolveErrorIsFatal(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	r.msi.ResolveErr["Citrix XenServer Tools Installer"] = errors.New("COM failure")

	_, err := r.cleaner().SystemClean()
	require.Error(t, err)
	assert.Empty(t, r.j.WithPrefix("msi uninstall"))
	assert.False(t, r.isSet(t, state.MSIsUninstalled))
}

func TestMSIAlreadyGoneIsBenign(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean)
	code := legacyProducts["Citrix XenServer VSS Provider"]
	r.msi.UninstallErr[code] = sysops.NotFoundf("uninstall product", code)

	done, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestEmptySystemIsBenign(t *testing.T) {
	j := &testutil.Journal{}
	info, err := osinfo.NewStatic(false, false, "6.1.7601")
	require.NoError(t, err)
	reg := testutil.NewRegistry(j)
	reg.Memory.CreateKey(catalog.ClassRoot)

	c := NewCleaner(System{
		Flags:          testutil.NewFlags(j),
		Registry:       reg,
		Devices:        testutil.NewDevices(j),
		Packages:       testutil.NewPackages(j),
		MSIResolver:    testutil.NewMSI(j, nil),
		MSIUninstaller: testutil.NewMSI(j, nil),
		Services:       testutil.NewServices(j),
		Files:          testutil.NewFiles(j),
		OS:             info,
	}, CleanOptions{DriverDir: driverDir})

	done, err := c.SystemClean()
	require.NoError(t, err)
	require.False(t, done)
	done, err = c.SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, j.Count("set "+string(state.CleanedUp)))
	assert.Empty(t, j.WithPrefix("msi uninstall"))
}

func TestMissingClassRootIsFatal(t *testing.T) {
	j := &testutil.Journal{}
	info, err := osinfo.NewStatic(true, false, "10.0.19045")
	require.NoError(t, err)
	c := NewCleaner(System{Flags: testutil.NewFlags(j), Registry: testutil.NewRegistry(j), OS: info}, CleanOptions{})

	_, err = c.SystemClean()
	require.Error(t, err)
	assert.Empty(t, j.WithPrefix("set "))
}

func TestLegacyInstallDirVariants(t *testing.T) {
	vendor := `SOFTWARE\Wow6432Node\Citrix\XenTools`

	t.Run("directory already gone", func(t *testing.T) {
		r := newRig(t)
		r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
			state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
		delete(r.files.Existing, installDir)

		done, err := r.cleaner().SystemClean()
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, 1, r.j.Count("dir remove "+installDir))
		assert.False(t, r.reg.KeyExists(vendor))
	})

	t.Run("no install dir value", func(t *testing.T) {
		r := newRig(t)
		r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
			state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
		require.NoError(t, r.reg.Memory.DeleteValue(vendor, catalog.InstallDirValue))

		done, err := r.cleaner().SystemClean()
		require.NoError(t, err)
		assert.True(t, done)
		assert.Empty(t, r.j.WithPrefix("dir remove"))
		assert.False(t, r.reg.KeyExists(vendor))
	})

	t.Run("no legacy keys at all", func(t *testing.T) {
		r := newRig(t)
		r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
			state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
		require.NoError(t, r.reg.Memory.DeleteTree(`SOFTWARE\Wow6432Node`))

		done, err := r.cleaner().SystemClean()
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("directory delete fails", func(t *testing.T) {
		r := newRig(t)
		r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
			state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
		r.files.Err[installDir] = errors.New("access denied")

		_, err := r.cleaner().SystemClean()
		require.Error(t, err)
		assert.False(t, r.isSet(t, state.CleanedUp))
		assert.True(t, r.reg.KeyExists(vendor), "vendor key is kept until the directory is gone")
	})
}

func TestLegacyOn32Bit(t *testing.T) {
	r := newRig(t)
	r.os.Arch64 = false
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
		state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
	r.reg.Memory.PutString(`SOFTWARE\Citrix\XenTools`, catalog.InstallDirValue, `C:\Program Files\Citrix\XenTools`)

	_, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	assert.Equal(t, 1, r.j.Count(`reg delete tree SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\Citrix XenTools`))
	assert.Equal(t, 1, r.j.Count(`dir remove C:\Program Files\Citrix\XenTools`))
	assert.False(t, r.reg.KeyExists(`SOFTWARE\Citrix\XenTools`))
	assert.True(t, r.reg.KeyExists(`SOFTWARE\Wow6432Node\Citrix\XenTools`))
}

func TestServicesOnServer2008(t *testing.T) {
	for _, tt := range []struct {
		name     string
		server   bool
		ver      string
		keepsBus bool
	}{
		{"2008 R2", true, "6.1.7601", true},
		{"2008", true, "6.0.6002", true},
		{"2012", true, "6.2.9200", false},
		{"Windows 7", false, "6.1.7601", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			info, err := osinfo.NewStatic(true, tt.server, tt.ver)
			require.NoError(t, err)
			r.os = info
			r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
				state.DrvsAndDevsUninstalled, state.MSIsUninstalled)

			done, err := r.cleaner().SystemClean()
			require.NoError(t, err)
			require.True(t, done)

			for _, svc := range catalog.CleanupServices {
				assert.Equal(t, 1, r.j.Count("service delete "+svc), svc)
			}
			for _, svc := range catalog.BusServices {
				want := 1
				if tt.keepsBus {
					want = 0
				}
				assert.Equal(t, want, r.j.Count("service delete "+svc), svc)
			}
		})
	}
}

func TestServiceFailureIsFatalAndRetried(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
		state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
	r.svcs.DeleteErr["xenvbd"] = errors.New("access denied")
	delete(r.svcs.Existing, "xenlite")

	_, err := r.cleaner().SystemClean()
	require.Error(t, err)
	assert.False(t, r.isSet(t, state.CleanedUp))
	assert.Empty(t, r.j.WithPrefix("file remove"))

	delete(r.svcs.DeleteErr, "xenvbd")
	done, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, r.j.Count("set "+string(state.CleanedUp)))
}

func TestDriverFileInUseIsLeft(t *testing.T) {
	r := newRig(t)
	r.flags.Preset(state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
		state.DrvsAndDevsUninstalled, state.MSIsUninstalled)
	busy := driverFile("xenvbd")
	r.files.InUse[busy] = true
	delete(r.files.Existing, driverFile("xencrsh"))

	done, err := r.cleaner().SystemClean()
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, r.isSet(t, state.CleanedUp))
	assert.Equal(t, []string{busy}, keys(r.files.Existing))
	for _, name := range catalog.DriverFiles {
		assert.Equal(t, 1, r.j.Count("file remove "+driverFile(name)), name)
	}
}

func TestFlagStoreErrorsPropagate(t *testing.T) {
	r := newRig(t)
	boom := errors.New("state store unavailable")
	r.flags.SetErr[state.RemovedFromFilters] = boom

	done, err := r.cleaner().SystemClean()
	assert.False(t, done)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.j.WithPrefix("reg set "+regedit.Join(catalog.ServicesRoot)))
}

func TestEndToEndUntilComplete(t *testing.T) {
	r := newRig(t)
	c := r.cleaner()

	calls := 0
	for {
		calls++
		require.LessOrEqual(t, calls, 5)
		done, err := c.SystemClean()
		require.NoError(t, err)
		if done {
			break
		}
	}
	assert.Equal(t, 2, calls)
	for _, m := range []state.Milestone{
		state.RemovedFromFilters, state.BootStartDisabled, state.ProceedWithSystemClean,
		state.DrvsAndDevsUninstalled, state.MSIsUninstalled, state.CleanedUp,
	} {
		assert.Equal(t, 1, r.j.Count("set "+string(m)), m)
	}
	assert.Empty(t, r.devs.Remaining())
}

// flakyUninstaller fails its failOn-th call and otherwise pretends to succeed.
type flakyUninstaller struct {
	failOn int
	calls  int
}

func (f *flakyUninstaller) Uninstall(code string, attempts int) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("msiexec exited with 1603")
	}
	return nil
}

// forceRecorder notes whether Remove saw force=true.
type forceRecorder struct {
	*testutil.Devices
	sawForce bool
}

func (f *forceRecorder) Open() (devices.Set, error) {
	set, err := f.Devices.Open()
	if err != nil {
		return nil, err
	}
	return &forceSet{Set: set, rec: f}, nil
}

type forceSet struct {
	devices.Set
	rec *forceRecorder
}

func (s *forceSet) Remove(hardwareID string, force bool) error {
	if force {
		s.rec.sawForce = true
	}
	return s.Set.Remove(hardwareID, force)
}

func index(entries []string, want string) int {
	for i, e := range entries {
		if e == want {
			return i
		}
	}
	return -1
}

func lastIndex(entries []string, want string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i] == want {
			return i
		}
	}
	return -1
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func keys(m map[string]bool) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
