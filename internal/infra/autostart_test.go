package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModeConfig(t *testing.T, goos string) *ExecModeConfig {
	t.Helper()
	return execModeFor(goos, false, t.TempDir())
}

func TestSystemdManager_Install(t *testing.T) {
	cfg := testModeConfig(t, "linux")
	runner := newMockCommandRunner()
	m := NewSystemdManager(cfg, runner)

	assert.False(t, m.IsInstalled())
	require.NoError(t, m.Install("/home/alex/.local/bin/appguard"))

	assert.True(t, m.IsInstalled())
	assert.Equal(t, cfg.AutostartPath, m.GetPath())

	content, err := os.ReadFile(m.GetPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "ExecStart=/home/alex/.local/bin/appguard boot")
	assert.Contains(t, string(content), "WantedBy=graphical-session.target")

	assert.Equal(t, []string{
		"systemctl --user daemon-reload",
		"systemctl --user import-environment DISPLAY XAUTHORITY WAYLAND_DISPLAY",
		"systemctl --user enable appguard.service",
	}, runner.Calls())
}

func TestSystemdManager_InstallWithoutSessionEnv(t *testing.T) {
	cfg := testModeConfig(t, "linux")
	runner := newMockCommandRunner()
	runner.errs["systemctl --user import-environment DISPLAY XAUTHORITY WAYLAND_DISPLAY"] = errors.New("exit status 1")
	m := NewSystemdManager(cfg, runner)

	require.NoError(t, m.Install("/opt/appguard"))
	assert.Contains(t, runner.Calls(), "systemctl --user enable appguard.service")
}

func TestSystemdManager_NeedsUpdate(t *testing.T) {
	cfg := testModeConfig(t, "linux")
	m := NewSystemdManager(cfg, newMockCommandRunner())

	assert.False(t, m.NeedsUpdate("/opt/appguard"), "missing entry needs install, not update")

	require.NoError(t, m.Install("/opt/appguard"))
	assert.False(t, m.NeedsUpdate("/opt/appguard"))
	assert.True(t, m.NeedsUpdate("/usr/local/bin/appguard"))

	require.NoError(t, m.Update("/usr/local/bin/appguard"))
	assert.False(t, m.NeedsUpdate("/usr/local/bin/appguard"))
}

func TestSystemdManager_Uninstall(t *testing.T) {
	cfg := testModeConfig(t, "linux")
	runner := newMockCommandRunner()
	m := NewSystemdManager(cfg, runner)
	require.NoError(t, m.Install("/opt/appguard"))

	require.NoError(t, m.Uninstall())
	assert.False(t, m.IsInstalled())
	assert.Contains(t, runner.Calls(), "systemctl --user disable appguard.service")

	assert.Error(t, m.Uninstall(), "nothing left to remove")
}

func TestLaunchdManager_Install(t *testing.T) {
	cfg := testModeConfig(t, "darwin")
	runner := newMockCommandRunner()
	m := NewLaunchdManager(cfg, "/Users/alex/.appguard/logs", runner)

	require.NoError(t, m.Install("/Users/alex/.local/bin/appguard"))
	assert.Equal(t, "LaunchAgents", filepath.Base(filepath.Dir(m.GetPath())))

	content, err := os.ReadFile(m.GetPath())
	require.NoError(t, err)
	plist := string(content)
	assert.Contains(t, plist, "<string>"+AutostartLabel+"</string>")
	assert.Contains(t, plist, "<string>/Users/alex/.local/bin/appguard</string>\n        <string>boot</string>")
	assert.Contains(t, plist, "/Users/alex/.appguard/logs/appguard.err.log")
	assert.Contains(t, plist, "<key>Crashed</key>")
	assert.Contains(t, plist, "<string>Interactive</string>")

	assert.Equal(t, []string{"launchctl load " + m.GetPath()}, runner.Calls())
}

func TestLaunchdManager_UpdateReloads(t *testing.T) {
	cfg := testModeConfig(t, "darwin")
	runner := newMockCommandRunner()
	m := NewLaunchdManager(cfg, t.TempDir(), runner)
	require.NoError(t, m.Install("/opt/appguard"))

	require.True(t, m.NeedsUpdate("/usr/local/bin/appguard"))
	require.NoError(t, m.Update("/usr/local/bin/appguard"))

	assert.Equal(t, []string{
		"launchctl load " + m.GetPath(),
		"launchctl unload " + m.GetPath(),
		"launchctl load " + m.GetPath(),
	}, runner.Calls())
	assert.False(t, m.NeedsUpdate("/usr/local/bin/appguard"))
}

func TestNewAutostartManager(t *testing.T) {
	runner := newMockCommandRunner()

	assert.IsType(t, &LaunchdManager{}, NewAutostartManager(testModeConfig(t, "darwin"), "", runner))
	assert.IsType(t, &SystemdManager{}, NewAutostartManager(testModeConfig(t, "linux"), "", runner))
}

func TestAutostartCapability(t *testing.T) {
	cfg := testModeConfig(t, "linux")
	m := NewSystemdManager(cfg, newMockCommandRunner())
	capability := NewAutostartCapability(m, "/opt/appguard")

	assert.False(t, capability.IsGranted())

	require.NoError(t, capability.RequestGrant())
	assert.True(t, capability.IsGranted())

	// Tampered entry is rewritten on the next request.
	require.NoError(t, os.WriteFile(m.GetPath(), []byte("[Service]\nExecStart=/bin/true\n"), 0644))
	require.NoError(t, capability.RequestGrant())
	assert.False(t, m.NeedsUpdate("/opt/appguard"))

	// Removing the entry revokes the capability.
	require.NoError(t, os.Remove(m.GetPath()))
	assert.False(t, capability.IsGranted())
}
