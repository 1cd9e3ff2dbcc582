package infra

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// InhibitorHold implements domain.LivenessHold with a helper process that
// blocks idle sleep for as long as it runs: systemd-inhibit on Linux,
// caffeinate on macOS. The helper is tied to our PID so it exits with us.
type InhibitorHold struct {
	mu        sync.Mutex
	goos      string
	runner    CommandRunner
	pm        domain.ProcessManager
	helperPID int
}

// NewInhibitorHold creates an unheld liveness hold.
func NewInhibitorHold(goos string, runner CommandRunner, pm domain.ProcessManager) *InhibitorHold {
	return &InhibitorHold{goos: goos, runner: runner, pm: pm}
}

// Acquire starts the helper. Acquiring while held is a no-op.
func (h *InhibitorHold) Acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.helperPID != 0 && h.pm.IsRunning(h.helperPID) {
		return nil
	}

	self := strconv.Itoa(h.pm.GetCurrentPID())
	var name string
	var args []string
	if h.goos == "darwin" {
		name, args = "caffeinate", []string{"-i", "-w", self}
	} else {
		name, args = "systemd-inhibit", []string{
			"--what=sleep:idle", "--who=appguard", "--why=enforcing app block list", "--mode=block",
			"tail", "--pid=" + self, "-f", "/dev/null",
		}
	}

	if !h.runner.LookPath(name) {
		return fmt.Errorf("liveness helper %s not found", name)
	}
	pid, err := h.runner.StartDetached(name, args...)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	h.helperPID = pid
	return nil
}

// Release stops the helper if one is running.
func (h *InhibitorHold) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.helperPID == 0 {
		return nil
	}
	pid := h.helperPID
	h.helperPID = 0
	if !h.pm.IsRunning(pid) {
		return nil
	}
	if err := h.pm.Terminate(pid); err != nil {
		return fmt.Errorf("failed to stop liveness helper %d: %w", pid, err)
	}
	return nil
}

// IsHeld reports whether the helper is running.
func (h *InhibitorHold) IsHeld() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.helperPID != 0 && h.pm.IsRunning(h.helperPID)
}

var _ domain.LivenessHold = (*InhibitorHold)(nil)
