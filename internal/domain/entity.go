// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// ErrForegroundUnknown is returned by a ForegroundQuery that could not tell
// which application is in front (no window focused, permission missing).
var ErrForegroundUnknown = errors.New("foreground application unknown")

// BlockedAppEntry is one row of the block list.
type BlockedAppEntry struct {
	ApplicationID string
	Blocked       bool
}

// ForegroundObservation is a single answer to "which app is in front".
// Never persisted.
type ForegroundObservation struct {
	ApplicationID string
	ObservedAt    time.Time
}

// EnforcementState is the lifecycle state of the enforcement loop.
type EnforcementState string

const (
	StateStopped   EnforcementState = "stopped"
	StateIdle      EnforcementState = "idle"      // alive, blocking toggled off
	StateEnforcing EnforcementState = "enforcing" // polling and suppressing
)

// CapabilityState tracks the elevated "cannot be casually disabled" capability.
type CapabilityState string

const (
	CapabilityGranted  CapabilityState = "granted"
	CapabilityRevoking CapabilityState = "revoking"
	CapabilityRevoked  CapabilityState = "revoked"
)

// RestartReason says why a restart ticket was issued.
type RestartReason string

const (
	ReasonKilled        RestartReason = "killed"
	ReasonBootCompleted RestartReason = "boot_completed"
)

// ParseRestartReason maps a CLI/unit argument back to a RestartReason.
func ParseRestartReason(s string) (RestartReason, error) {
	switch RestartReason(s) {
	case ReasonKilled, ReasonBootCompleted:
		return RestartReason(s), nil
	default:
		return "", errors.New("unknown restart reason: " + s)
	}
}

// RestartTicket is a deferred restart registered with the OS scheduler.
// It only lives between scheduling and firing.
type RestartTicket struct {
	ID          string
	ScheduledAt time.Time
	Delay       time.Duration
	Reason      RestartReason
}

// FireAt returns the wall-clock time the ticket is due.
func (t RestartTicket) FireAt() time.Time {
	return t.ScheduledAt.Add(t.Delay)
}

// CapabilityEventKind tags a CapabilityEvent.
type CapabilityEventKind int

const (
	EventGranted CapabilityEventKind = iota + 1
	EventRevokeAttempted
	EventRevoked
)

func (k CapabilityEventKind) String() string {
	switch k {
	case EventGranted:
		return "granted"
	case EventRevokeAttempted:
		return "revoke_attempted"
	case EventRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// CapabilityEvent is delivered by the platform (or the daemon's autostart
// check) when the elevated capability changes.
type CapabilityEvent struct {
	Kind       CapabilityEventKind
	OccurredAt time.Time
	Source     string // what detected it, e.g. "autostart-check"
}

// StatusRecord is the daemon's published state, readable by other processes.
type StatusRecord struct {
	PID           int
	Enforcement   EnforcementState
	Capability    CapabilityState
	LastHeartbeat int64
	StartedAt     int64
	AppVersion    string
}
