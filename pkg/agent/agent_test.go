package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// gatedCleaner returns false for the first gate calls, then true.
type gatedCleaner struct {
	gate  int
	calls int
	err   error
}

func (g *gatedCleaner) SystemClean() (bool, error) {
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	return g.calls > g.gate, nil
}

type countingInstaller struct {
	calls int
	err   error
}

func (c *countingInstaller) InstallDrivers() error {
	c.calls++
	return c.err
}

func TestRunStopsAtGate(t *testing.T) {
	c, i := &gatedCleaner{gate: 1}, &countingInstaller{}
	out, err := New(c, i, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RebootRequired, out)
	assert.Equal(t, 3010, out.ExitCode())
	assert.Equal(t, 1, c.calls)
	assert.Zero(t, i.calls)
}

func TestRunAfterGateInstalls(t *testing.T) {
	c, i := &gatedCleaner{gate: 0}, &countingInstaller{}
	out, err := New(c, i, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, 1, i.calls)
}

func TestSkipRebootGateContinues(t *testing.T) {
	c, i := &gatedCleaner{gate: 1}, &countingInstaller{}
	out, err := New(c, i, Options{SkipRebootGate: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, 2, c.calls)
	assert.Equal(t, 1, i.calls)
}

func TestSkipRebootGateIsBounded(t *testing.T) {
	c := &gatedCleaner{gate: 100}
	out, err := New(c, &countingInstaller{}, Options{SkipRebootGate: true, MaxCleanCalls: 4}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RebootRequired, out)
	assert.Equal(t, 4, c.calls)
}

func TestCleanupErrorStopsRun(t *testing.T) {
	boom := errors.New("registry write failed")
	i := &countingInstaller{}
	_, err := New(&gatedCleaner{err: boom}, i, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, i.calls)
}

func TestInstallOnly(t *testing.T) {
	c, i := &gatedCleaner{gate: 1}, &countingInstaller{}
	out, err := New(c, i, Options{SkipCleanup: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Zero(t, c.calls)
	assert.Equal(t, 1, i.calls)
}

func TestInstallErrorPropagates(t *testing.T) {
	boom := errors.New("pnputil exited with 1")
	_, err := New(&gatedCleaner{}, &countingInstaller{err: boom}, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &gatedCleaner{}
	_, err := New(c, &countingInstaller{}, Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.calls)
}

type recordingRunner struct {
	args []string
	code int
}

func (r *recordingRunner) Run(_ context.Context, _ string, args ...string) (installer.Result, error) {
	r.args = args
	return installer.Result{ExitCode: r.code}, nil
}

func TestShutdownRebooter(t *testing.T) {
	r := &recordingRunner{}
	require.NoError(t, NewShutdownRebooter(r).Reboot(context.Background(), 30*time.Second, "PV driver cleanup"))
	assert.Equal(t, "/r /t 30 /d p:2:17 /c PV driver cleanup", strings.Join(r.args, " "))

	r.code = 1190
	assert.Error(t, NewShutdownRebooter(r).Reboot(context.Background(), 0, "x"))
}
