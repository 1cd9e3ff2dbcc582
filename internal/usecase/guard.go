package usecase

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const (
	// WarningTitle is shown on the revoke-attempt warning surface.
	WarningTitle = "Operation not permitted"

	// WarningMessage is the body of the revoke-attempt warning.
	WarningMessage = "appguard protection cannot be disabled. The block list stays in force."

	// RefusalMessage is returned to the platform's revoke confirmation.
	RefusalMessage = `Important security notice

This application contains security features that prevent disabling protection.

1. Do not attempt to remove the autostart entry.
2. Do not attempt to forcefully uninstall or disable the app.
3. Attempts to bypass protection trigger automatic corrective actions.

Protection cannot be disabled.`
)

// SourceStartup tags the capability check a daemon runs as it comes up.
// An entry missing at that point was removed while the daemon was down.
const SourceStartup = "startup"

type degradable interface {
	OnCapabilityRevoked()
	OnCapabilityGranted()
}

// CapabilityGuard tracks the elevated capability and reacts to revoke
// attempts. It does not depend on the enforcement state.
type CapabilityGuard struct {
	mu            sync.Mutex
	state         domain.CapabilityState
	onStateChange func(domain.CapabilityState)

	capability domain.PrivilegedCapability
	warner     domain.WarningPresenter
	relauncher domain.Relauncher
	loop       degradable
	logger     *zap.Logger
	now        func() time.Time
}

// NewCapabilityGuard creates a guard whose initial state mirrors whether
// the capability is currently granted.
func NewCapabilityGuard(
	capability domain.PrivilegedCapability,
	warner domain.WarningPresenter,
	relauncher domain.Relauncher,
	loop degradable,
	logger *zap.Logger,
) *CapabilityGuard {
	state := domain.CapabilityRevoked
	if capability.IsGranted() {
		state = domain.CapabilityGranted
	} else {
		loop.OnCapabilityRevoked()
	}
	return &CapabilityGuard{
		state:      state,
		capability: capability,
		warner:     warner,
		relauncher: relauncher,
		loop:       loop,
		logger:     logger,
		now:        time.Now,
	}
}

// OnStateChange registers a hook called after every state transition.
func (g *CapabilityGuard) OnStateChange(fn func(domain.CapabilityState)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onStateChange = fn
}

// State returns the current capability state.
func (g *CapabilityGuard) State() domain.CapabilityState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Handle dispatches a capability event synchronously on the caller's
// goroutine. For a revoke attempt it returns the refusal message for the
// platform's confirmation dialog; otherwise the empty string.
func (g *CapabilityGuard) Handle(event domain.CapabilityEvent) string {
	switch event.Kind {
	case domain.EventRevokeAttempted:
		g.setState(domain.CapabilityRevoking)
		g.logger.Warn("capability revoke attempted", zap.String("source", event.Source))

		// Independent: a failed warning must not prevent the relaunch.
		g.attempt("show warning", func() error {
			return g.warner.ShowWarning(WarningTitle, WarningMessage)
		})
		g.attempt("relaunch", g.relauncher.Relaunch)
		return RefusalMessage

	case domain.EventGranted:
		g.setState(domain.CapabilityGranted)
		g.logger.Info("capability granted", zap.String("source", event.Source))
		g.loop.OnCapabilityGranted()
		return ""

	case domain.EventRevoked:
		g.setState(domain.CapabilityRevoked)
		g.logger.Warn("capability revoked", zap.String("source", event.Source))
		g.loop.OnCapabilityRevoked()
		return ""

	default:
		g.logger.Warn("unknown capability event", zap.Int("kind", int(event.Kind)))
		return ""
	}
}

// CheckCapability compares the platform's view with the tracked state and
// raises the matching event. A capability still missing on the check after
// a revoke attempt is treated as revoked. On the startup check a missing
// capability always counts as a revoke attempt, whatever the tracked state.
func (g *CapabilityGuard) CheckCapability(source string) {
	granted := g.capability.IsGranted()
	state := g.State()

	var kind domain.CapabilityEventKind
	switch {
	case granted && state != domain.CapabilityGranted:
		kind = domain.EventGranted
	case !granted && (state == domain.CapabilityGranted || source == SourceStartup):
		kind = domain.EventRevokeAttempted
	case !granted && state == domain.CapabilityRevoking:
		kind = domain.EventRevoked
	default:
		return
	}
	g.Handle(domain.CapabilityEvent{Kind: kind, OccurredAt: g.now(), Source: source})
}

// RequestGrant asks the platform for the capability.
func (g *CapabilityGuard) RequestGrant() error {
	if err := g.capability.RequestGrant(); err != nil {
		return fmt.Errorf("failed to request capability: %w", err)
	}
	return nil
}

// attempt runs one reaction step, containing errors and panics.
func (g *CapabilityGuard) attempt(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("revoke reaction panicked", zap.String("step", step), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		g.logger.Error("revoke reaction failed", zap.String("step", step), zap.Error(err))
	}
}

func (g *CapabilityGuard) setState(next domain.CapabilityState) {
	g.mu.Lock()
	prev := g.state
	g.state = next
	hook := g.onStateChange
	g.mu.Unlock()

	if prev != next && hook != nil {
		hook(next)
	}
}
