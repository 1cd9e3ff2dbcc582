package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// Deps are the platform collaborators of a Subsystem.
type Deps struct {
	Store      domain.PolicyStore
	Query      domain.ForegroundQuery
	Suppressor domain.SuppressionAction
	Notifier   domain.Notifier
	Hold       domain.LivenessHold
	Deferred   domain.DeferredScheduler
	Capability domain.PrivilegedCapability
	Warner     domain.WarningPresenter
	Relauncher domain.Relauncher
}

// Subsystem owns the single EnforcementLoop of a process together with the
// RestartScheduler and CapabilityGuard wired to it. Pass it (or its parts)
// explicitly to whatever needs to signal the loop.
type Subsystem struct {
	Loop     *EnforcementLoop
	Restarts *RestartScheduler
	Guard    *CapabilityGuard
	store    domain.PolicyStore
}

// NewSubsystem wires the core components.
func NewSubsystem(deps Deps, config LoopConfig, logger *zap.Logger) *Subsystem {
	monitor := NewForegroundMonitor(deps.Query, config.PollInterval, config.QueryTimeout, logger)
	loop := NewEnforcementLoop(config, monitor, deps.Store, deps.Suppressor, deps.Notifier, deps.Hold, logger)
	restarts := NewRestartScheduler(deps.Deferred, loop, logger)
	loop.restarts = restarts
	guard := NewCapabilityGuard(deps.Capability, deps.Warner, deps.Relauncher, loop, logger)

	return &Subsystem{
		Loop:     loop,
		Restarts: restarts,
		Guard:    guard,
		store:    deps.Store,
	}
}

func (s *Subsystem) SetBlocked(applicationID string, blocked bool) bool {
	return s.store.SetBlocked(applicationID, blocked)
}

func (s *Subsystem) ListBlocked() []string {
	return s.store.ListBlocked()
}

func (s *Subsystem) StartEnforcement() domain.EnforcementState {
	return s.Loop.Start()
}

func (s *Subsystem) StopEnforcement() domain.EnforcementState {
	return s.Loop.Stop()
}

func (s *Subsystem) EnforcementStatus() domain.EnforcementState {
	return s.Loop.State()
}

func (s *Subsystem) CapabilityStatus() domain.CapabilityState {
	return s.Guard.State()
}

var _ domain.Controller = (*Subsystem)(nil)
