package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const frontmostBundleScript = `tell application "System Events" to get bundle identifier of first application process whose frontmost is true`

// DesktopForegroundQuery implements domain.ForegroundQuery.
// Linux/X11: active window -> _NET_WM_PID -> process name.
// macOS: bundle identifier of the frontmost process.
type DesktopForegroundQuery struct {
	goos   string
	runner CommandRunner
	pm     domain.ProcessManager
}

// NewForegroundQuery creates a query for the given platform.
func NewForegroundQuery(goos string, runner CommandRunner, pm domain.ProcessManager) *DesktopForegroundQuery {
	return &DesktopForegroundQuery{goos: goos, runner: runner, pm: pm}
}

// Foreground returns the focused application's id or domain.ErrForegroundUnknown.
func (q *DesktopForegroundQuery) Foreground(ctx context.Context) (string, error) {
	if q.goos == "darwin" {
		return q.foregroundDarwin(ctx)
	}
	return q.foregroundX11(ctx)
}

func (q *DesktopForegroundQuery) foregroundX11(ctx context.Context) (string, error) {
	win, err := activeX11Window(ctx, q.runner, q.pm)
	if err != nil {
		return "", err
	}
	return win.Name, nil
}

func (q *DesktopForegroundQuery) foregroundDarwin(ctx context.Context) (string, error) {
	out, err := q.runner.Output(ctx, "osascript", "-e", frontmostBundleScript)
	if err != nil {
		return "", fmt.Errorf("osascript failed: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" || id == "missing value" {
		return "", domain.ErrForegroundUnknown
	}
	return id, nil
}

var _ domain.ForegroundQuery = (*DesktopForegroundQuery)(nil)
