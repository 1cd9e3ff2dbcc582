package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const (
	notificationTitle = "App Blocking Service"
	desktopCmdTimeout = 3 * time.Second
)

// DesktopIntegration implements the user-facing side effects of the daemon:
// suppression, the ongoing status notification and the revoke warning.
type DesktopIntegration struct {
	goos   string
	runner CommandRunner
	pm     domain.ProcessManager
	logger *zap.Logger
}

// NewDesktopIntegration creates desktop bindings for the given platform.
func NewDesktopIntegration(goos string, runner CommandRunner, pm domain.ProcessManager, logger *zap.Logger) *DesktopIntegration {
	return &DesktopIntegration{goos: goos, runner: runner, pm: pm, logger: logger}
}

// Suppress sends the user to a neutral context. On X11 the window of
// applicationID is minimized by id, and only while it still has focus. On
// macOS the app is hidden and Finder brought forward.
func (d *DesktopIntegration) Suppress(ctx context.Context, applicationID string) error {
	if d.goos == "darwin" {
		script := fmt.Sprintf(
			`tell application "System Events" to set visible of (first application process whose bundle identifier is "%s") to false
tell application "Finder" to activate`, appleScriptEscape(applicationID))
		if err := d.runner.Run(ctx, "osascript", "-e", script); err != nil {
			return fmt.Errorf("failed to hide %s: %w", applicationID, err)
		}
		return nil
	}

	win, err := activeX11Window(ctx, d.runner, d.pm)
	if errors.Is(err, domain.ErrForegroundUnknown) {
		d.logger.Debug("nothing focused, skipping suppression", zap.String("app", applicationID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find the window of %s: %w", applicationID, err)
	}
	if win.Name != applicationID {
		// Focus moved on between detection and now.
		d.logger.Debug("focus changed, skipping suppression",
			zap.String("app", applicationID),
			zap.String("focused", win.Name))
		return nil
	}

	if err := d.runner.Run(ctx, "xdotool", "windowminimize", win.ID); err != nil {
		return fmt.Errorf("failed to minimize %s: %w", applicationID, err)
	}
	return nil
}

// Notify updates the ongoing status indicator.
func (d *DesktopIntegration) Notify(summary string) error {
	ctx, cancel := context.WithTimeout(context.Background(), desktopCmdTimeout)
	defer cancel()

	if d.goos == "darwin" {
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			appleScriptEscape(summary), notificationTitle)
		return d.runner.Run(ctx, "osascript", "-e", script)
	}
	if !d.runner.LookPath("notify-send") {
		d.logger.Debug("notify-send not available, status only logged", zap.String("summary", summary))
		return nil
	}
	return d.runner.Run(ctx, "notify-send", "-u", "low", "-a", "appguard", notificationTitle, summary)
}

// ShowWarning presents a critical alert. It does not wait for the user.
func (d *DesktopIntegration) ShowWarning(title, message string) error {
	if d.goos == "darwin" {
		script := fmt.Sprintf(`display alert "%s" message "%s" as critical`,
			appleScriptEscape(title), appleScriptEscape(message))
		_, err := d.runner.StartDetached("osascript", "-e", script)
		return err
	}
	_, err := d.runner.StartDetached("notify-send", "-u", "critical", "-a", "appguard", title, message)
	return err
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

var _ domain.SuppressionAction = (*DesktopIntegration)(nil)
var _ domain.Notifier = (*DesktopIntegration)(nil)
var _ domain.WarningPresenter = (*DesktopIntegration)(nil)
