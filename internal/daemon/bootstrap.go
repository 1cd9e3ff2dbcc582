package daemon

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
	"github.com/eliteGoblin/focusd/app_guard/internal/infra"
)

// HeartbeatStale is how old a status heartbeat may get before the daemon
// is considered gone even if its PID is still in use.
const HeartbeatStale = 3 * DefaultHeartbeat

// DefaultHeartbeat mirrors DefaultConfig().HeartbeatInterval.
const DefaultHeartbeat = 30 * time.Second

// Spawn starts `binaryPath daemon` detached from the caller.
// binaryPath should be the installed binary, not os.Executable(), so the
// daemon keeps running from the install location.
func Spawn(runner infra.CommandRunner, binaryPath string, extraArgs ...string) error {
	args := append([]string{"daemon"}, extraArgs...)
	if err := infra.NewSelfLauncher(runner, binaryPath, args...).Relaunch(); err != nil {
		return fmt.Errorf("failed to spawn daemon: %w", err)
	}
	return nil
}

// IsAlive reports whether the status record belongs to a live daemon.
func IsAlive(status *domain.StatusRecord, pm domain.ProcessManager, now time.Time) bool {
	if status == nil || status.Enforcement == domain.StateStopped {
		return false
	}
	if !pm.IsRunning(status.PID) {
		return false
	}
	return now.Sub(time.Unix(status.LastHeartbeat, 0)) <= HeartbeatStale
}
