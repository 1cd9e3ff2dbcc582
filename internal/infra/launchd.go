package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// LaunchAgent plist template (runs as user at login)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>boot</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>5</integer>
</dict>
</plist>`

const launchctlTimeout = 10 * time.Second

type autostartConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

// LaunchdManager implements domain.AutostartManager with a LaunchAgent,
// which runs in the user's GUI session.
type LaunchdManager struct {
	plistDir  string
	plistPath string
	logDir    string
	runner    CommandRunner
}

// NewLaunchdManager creates a LaunchAgent manager.
func NewLaunchdManager(cfg *ExecModeConfig, logDir string, runner CommandRunner) *LaunchdManager {
	return &LaunchdManager{
		plistDir:  cfg.AutostartDir,
		plistPath: cfg.AutostartPath,
		logDir:    logDir,
		runner:    runner,
	}
}

func (m *LaunchdManager) content(execPath string) ([]byte, error) {
	return renderTemplate(launchAgentTemplate, autostartConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		LogPath:        filepath.Join(m.logDir, "appguard.out.log"),
		ErrorLogPath:   filepath.Join(m.logDir, "appguard.err.log"),
	})
}

// Install writes and loads the plist.
func (m *LaunchdManager) Install(execPath string) error {
	if err := writeEntry(m.plistDir, m.plistPath, func() ([]byte, error) { return m.content(execPath) }); err != nil {
		return err
	}
	return m.launchctl("load", m.plistPath)
}

// Uninstall unloads and removes the plist.
func (m *LaunchdManager) Uninstall() error {
	_ = m.launchctl("unload", m.plistPath)
	return os.Remove(m.plistPath)
}

// IsInstalled checks if the plist is present.
func (m *LaunchdManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// GetPath returns the plist file path.
func (m *LaunchdManager) GetPath() string {
	return m.plistPath
}

// NeedsUpdate checks if plist exists but has different content than expected.
func (m *LaunchdManager) NeedsUpdate(execPath string) bool {
	return entryDiffers(m.plistPath, func() ([]byte, error) { return m.content(execPath) })
}

// Update unloads, rewrites, and reloads the plist.
func (m *LaunchdManager) Update(execPath string) error {
	_ = m.launchctl("unload", m.plistPath)
	return m.Install(execPath)
}

func (m *LaunchdManager) launchctl(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), launchctlTimeout)
	defer cancel()
	return m.runner.Run(ctx, "launchctl", args...)
}

// renderTemplate executes a text/template with data.
func renderTemplate(tmplStr string, data any) ([]byte, error) {
	tmpl, err := template.New("autostart").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse autostart template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute autostart template: %w", err)
	}
	return buf.Bytes(), nil
}

// writeEntry atomically writes an autostart entry (temp file + rename).
func writeEntry(dir, path string, render func() ([]byte, error)) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	content, err := render()
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, content, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// entryDiffers reports whether an existing entry differs from the rendered one.
// A missing entry needs Install, not Update, so it reports false.
func entryDiffers(path string, render func() ([]byte, error)) bool {
	current, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		return true
	}
	expected, err := render()
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

var _ domain.AutostartManager = (*LaunchdManager)(nil)
