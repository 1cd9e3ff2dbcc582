package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// x11Window is the focused top-level window and the process that owns it.
type x11Window struct {
	ID   string // e.g. 0x3a00007
	PID  int
	Name string
}

// activeX11Window resolves _NET_ACTIVE_WINDOW -> _NET_WM_PID -> process name.
// A desktop with nothing focused, or a window that does not set its pid,
// yields domain.ErrForegroundUnknown.
func activeX11Window(ctx context.Context, runner CommandRunner, pm domain.ProcessManager) (x11Window, error) {
	out, err := runner.Output(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return x11Window{}, fmt.Errorf("xprop failed (no X11?): %w", err)
	}

	// _NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007
	fields := strings.Fields(string(out))
	if len(fields) < 5 {
		return x11Window{}, fmt.Errorf("unexpected xprop output: %q", strings.TrimSpace(string(out)))
	}
	win := x11Window{ID: strings.TrimSuffix(fields[len(fields)-1], ",")}
	if win.ID == "0x0" {
		return x11Window{}, domain.ErrForegroundUnknown
	}

	out, err = runner.Output(ctx, "xprop", "-id", win.ID, "_NET_WM_PID")
	if err != nil {
		return x11Window{}, fmt.Errorf("failed to query _NET_WM_PID: %w", err)
	}

	// _NET_WM_PID(CARDINAL) = 12345
	fields = strings.Fields(string(out))
	if len(fields) == 0 {
		return x11Window{}, domain.ErrForegroundUnknown
	}
	win.PID, err = strconv.Atoi(fields[len(fields)-1])
	if err != nil || win.PID <= 0 {
		// "_NET_WM_PID:  not found." for windows that don't set it
		return x11Window{}, domain.ErrForegroundUnknown
	}

	win.Name, err = pm.NameOf(win.PID)
	if err != nil {
		return x11Window{}, fmt.Errorf("failed to resolve pid %d: %w", win.PID, err)
	}
	if win.Name == "" {
		return x11Window{}, domain.ErrForegroundUnknown
	}
	return win, nil
}
