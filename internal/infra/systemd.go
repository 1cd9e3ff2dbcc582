package infra

import (
	"context"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const systemdUnitTemplate = `[Unit]
Description=appguard app block enforcement
After=graphical-session.target
PartOf=graphical-session.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} boot
Restart=on-failure
RestartSec=5

[Install]
WantedBy=graphical-session.target
`

type systemdUnitConfig struct {
	ExecutablePath string
}

// sessionEnv is what the daemon needs from the graphical session to query
// and suppress the foreground window.
var sessionEnv = []string{"DISPLAY", "XAUTHORITY", "WAYLAND_DISPLAY"}

// SystemdManager implements domain.AutostartManager with a --user unit
// started with the graphical session.
type SystemdManager struct {
	unitDir  string
	unitPath string
	runner   CommandRunner
}

// NewSystemdManager creates a user unit manager.
func NewSystemdManager(cfg *ExecModeConfig, runner CommandRunner) *SystemdManager {
	return &SystemdManager{
		unitDir:  cfg.AutostartDir,
		unitPath: cfg.AutostartPath,
		runner:   runner,
	}
}

func (m *SystemdManager) content(execPath string) ([]byte, error) {
	return renderTemplate(systemdUnitTemplate, systemdUnitConfig{ExecutablePath: execPath})
}

// Install writes, reloads and enables the unit. The session's display
// variables are imported into the user manager so the unit can reach X11.
func (m *SystemdManager) Install(execPath string) error {
	if err := writeEntry(m.unitDir, m.unitPath, func() ([]byte, error) { return m.content(execPath) }); err != nil {
		return err
	}
	if err := m.systemctl("daemon-reload"); err != nil {
		return err
	}
	// Best effort: variables missing from our own env are skipped by systemctl.
	_ = m.systemctl(append([]string{"import-environment"}, sessionEnv...)...)
	return m.systemctl("enable", filepath.Base(m.unitPath))
}

// Uninstall disables and removes the unit.
func (m *SystemdManager) Uninstall() error {
	_ = m.systemctl("disable", filepath.Base(m.unitPath))
	if err := os.Remove(m.unitPath); err != nil {
		return err
	}
	return m.systemctl("daemon-reload")
}

// IsInstalled checks if the unit file is present.
func (m *SystemdManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// GetPath returns the unit file path.
func (m *SystemdManager) GetPath() string {
	return m.unitPath
}

// NeedsUpdate checks if the unit exists but differs from the expected content.
func (m *SystemdManager) NeedsUpdate(execPath string) bool {
	return entryDiffers(m.unitPath, func() ([]byte, error) { return m.content(execPath) })
}

// Update rewrites the unit and reloads the manager.
func (m *SystemdManager) Update(execPath string) error {
	return m.Install(execPath)
}

func (m *SystemdManager) systemctl(args ...string) error {
	args = append([]string{"--user"}, args...)
	ctx, cancel := context.WithTimeout(context.Background(), launchctlTimeout)
	defer cancel()
	return m.runner.Run(ctx, "systemctl", args...)
}

// NewAutostartManager picks launchd on macOS and systemd elsewhere.
func NewAutostartManager(cfg *ExecModeConfig, logDir string, runner CommandRunner) domain.AutostartManager {
	if cfg.GOOS == "darwin" {
		return NewLaunchdManager(cfg, logDir, runner)
	}
	return NewSystemdManager(cfg, runner)
}

// AutostartCapability presents the autostart entry as the elevated
// capability: granted while installed, requested by (re)installing it.
type AutostartCapability struct {
	manager  domain.AutostartManager
	execPath string
}

// NewAutostartCapability wraps an autostart manager.
func NewAutostartCapability(manager domain.AutostartManager, execPath string) *AutostartCapability {
	return &AutostartCapability{manager: manager, execPath: execPath}
}

func (c *AutostartCapability) IsGranted() bool {
	return c.manager.IsInstalled()
}

// RequestGrant installs the entry, or rewrites it if it was tampered with.
func (c *AutostartCapability) RequestGrant() error {
	if c.manager.IsInstalled() {
		if c.manager.NeedsUpdate(c.execPath) {
			return c.manager.Update(c.execPath)
		}
		return nil
	}
	return c.manager.Install(c.execPath)
}

var _ domain.AutostartManager = (*SystemdManager)(nil)
var _ domain.PrivilegedCapability = (*AutostartCapability)(nil)
