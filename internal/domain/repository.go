package domain

import "context"

// PolicyStore is the single source of truth for what is blocked.
// Implementations never return storage errors across this boundary:
// writes report false, reads fall back to "not blocked" / empty.
// All methods are safe for concurrent use.
type PolicyStore interface {
	// SetBlocked upserts (blocked=true) or deletes (blocked=false) the entry.
	SetBlocked(applicationID string, blocked bool) bool

	// IsBlocked returns false for unknown ids and on lookup errors.
	IsBlocked(applicationID string) bool

	// ListBlocked returns blocked ids in no particular order.
	ListBlocked() []string

	// Clear removes every entry.
	Clear() bool

	// BlockingEnabled reports the persisted policy toggle.
	BlockingEnabled() bool

	// SetBlockingEnabled persists the policy toggle.
	SetBlockingEnabled(enabled bool) bool
}

// StatusStore persists the daemon's status record for other processes.
type StatusStore interface {
	SaveStatus(status StatusRecord) error

	// LoadStatus returns nil, nil when no daemon has published yet.
	LoadStatus() (*StatusRecord, error)
}

// ForegroundQuery answers which application currently has user focus.
// Returns ErrForegroundUnknown when there is no answer. Must honor ctx.
type ForegroundQuery interface {
	Foreground(ctx context.Context) (string, error)
}

// PrivilegedCapability is the elevated capability that makes the daemon hard
// to remove.
type PrivilegedCapability interface {
	IsGranted() bool
	RequestGrant() error
}

// SuppressionAction moves the user away from a blocked application.
type SuppressionAction interface {
	Suppress(ctx context.Context, applicationID string) error
}

// Notifier presents the ongoing status indicator.
type Notifier interface {
	Notify(summary string) error
}

// WarningPresenter shows the forceful "operation not permitted" surface.
type WarningPresenter interface {
	ShowWarning(title, message string) error
}

// Relauncher takes the corrective action after a revoke attempt, putting
// back whatever the platform needs to start the daemon again.
type Relauncher interface {
	Relaunch() error
}

// DeferredScheduler registers a one-shot restart with the OS so that it
// fires even if the calling process is gone.
type DeferredScheduler interface {
	Schedule(ticket RestartTicket) error
}

// LivenessHold keeps the host from suspending the daemon.
// Acquire is idempotent; Release on a hold that is not held is a no-op.
type LivenessHold interface {
	Acquire() error
	Release() error
	IsHeld() bool
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// NameOf returns the executable name of a running process.
	NameOf(pid int) (string, error)

	// Terminate sends SIGTERM to a process.
	Terminate(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// AutostartManager installs the OS entry that starts appguard at boot/login.
// Implementations: systemd user unit (Linux), launchd plist (macOS).
type AutostartManager interface {
	// Install writes and loads the entry.
	Install(execPath string) error

	// Uninstall unloads and removes the entry.
	Uninstall() error

	// IsInstalled checks if the entry file exists.
	IsInstalled() bool

	// GetPath returns the entry file path.
	GetPath() string

	// NeedsUpdate checks if the entry exists but differs from what Install writes.
	NeedsUpdate(execPath string) bool

	// Update rewrites and reloads the entry.
	Update(execPath string) error
}

// Controller is what the core exposes to a UI layer.
type Controller interface {
	SetBlocked(applicationID string, blocked bool) bool
	ListBlocked() []string
	StartEnforcement() EnforcementState
	StopEnforcement() EnforcementState
	EnforcementStatus() EnforcementState
	CapabilityStatus() CapabilityState
}
