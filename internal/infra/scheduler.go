package infra

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const scheduleCmdTimeout = 5 * time.Second

// restartArgs is the command line a fired ticket runs.
func restartArgs(execPath string, ticket domain.RestartTicket) []string {
	return []string{execPath, "restart", "--reason", string(ticket.Reason), "--ticket", ticket.ID}
}

// SystemdScheduler registers restart tickets as transient timers in the
// user's service manager. The timer lives there, not in our process.
type SystemdScheduler struct {
	runner   CommandRunner
	execPath string
}

// NewSystemdScheduler creates a scheduler using `systemd-run --user`.
func NewSystemdScheduler(runner CommandRunner, execPath string) *SystemdScheduler {
	return &SystemdScheduler{runner: runner, execPath: execPath}
}

// Schedule registers a one-shot timer firing after ticket.Delay.
func (s *SystemdScheduler) Schedule(ticket domain.RestartTicket) error {
	secs := int(math.Ceil(ticket.Delay.Seconds()))
	if secs < 1 {
		secs = 1
	}

	args := []string{
		"--user",
		"--unit=appguard-restart-" + ticket.ID,
		fmt.Sprintf("--on-active=%ds", secs),
		"--timer-property=AccuracySec=1s",
	}
	args = append(args, restartArgs(s.execPath, ticket)...)

	ctx, cancel := context.WithTimeout(context.Background(), scheduleCmdTimeout)
	defer cancel()
	if err := s.runner.Run(ctx, "systemd-run", args...); err != nil {
		return fmt.Errorf("systemd-run failed for ticket %s: %w", ticket.ID, err)
	}
	return nil
}

// DetachedScheduler starts a sleeping shell in its own session that execs
// the restart command. Used where no service manager timer is available.
type DetachedScheduler struct {
	runner   CommandRunner
	execPath string
}

// NewDetachedScheduler creates a session-detached scheduler.
func NewDetachedScheduler(runner CommandRunner, execPath string) *DetachedScheduler {
	return &DetachedScheduler{runner: runner, execPath: execPath}
}

// Schedule spawns `sh -c 'sleep N; exec appguard restart ...'`.
func (s *DetachedScheduler) Schedule(ticket domain.RestartTicket) error {
	secs := strconv.FormatFloat(ticket.Delay.Seconds(), 'f', -1, 64)
	args := append([]string{"-c", `sleep "$0"; exec "$@"`, secs}, restartArgs(s.execPath, ticket)...)
	if _, err := s.runner.StartDetached("/bin/sh", args...); err != nil {
		return fmt.Errorf("failed to spawn restart for ticket %s: %w", ticket.ID, err)
	}
	return nil
}

// NewDeferredScheduler prefers systemd timers on Linux and falls back to a
// detached sleeper elsewhere.
func NewDeferredScheduler(cfg *ExecModeConfig, runner CommandRunner, execPath string) domain.DeferredScheduler {
	if cfg.GOOS == "linux" && runner.LookPath("systemd-run") {
		return NewSystemdScheduler(runner, execPath)
	}
	return NewDetachedScheduler(runner, execPath)
}

var _ domain.DeferredScheduler = (*SystemdScheduler)(nil)
var _ domain.DeferredScheduler = (*DetachedScheduler)(nil)
