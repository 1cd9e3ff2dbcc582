package usecase

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

type starter interface {
	Start() domain.EnforcementState
}

// RestartScheduler registers deferred restarts with the OS and turns fired
// tickets and boot signals into EnforcementLoop.Start calls.
type RestartScheduler struct {
	deferred domain.DeferredScheduler
	loop     starter
	logger   *zap.Logger
	now      func() time.Time
}

// NewRestartScheduler creates a scheduler bound to the loop it restarts.
func NewRestartScheduler(deferred domain.DeferredScheduler, loop starter, logger *zap.Logger) *RestartScheduler {
	return &RestartScheduler{
		deferred: deferred,
		loop:     loop,
		logger:   logger,
		now:      time.Now,
	}
}

// ScheduleRestart registers a one-shot restart firing after delay.
func (r *RestartScheduler) ScheduleRestart(delay time.Duration, reason domain.RestartReason) (domain.RestartTicket, error) {
	ticket := domain.RestartTicket{
		ID:          uuid.NewString(),
		ScheduledAt: r.now(),
		Delay:       delay,
		Reason:      reason,
	}
	if err := r.deferred.Schedule(ticket); err != nil {
		return ticket, err
	}
	r.logger.Debug("restart ticket registered",
		zap.String("ticket", ticket.ID),
		zap.String("reason", string(reason)),
		zap.Duration("delay", delay))
	return ticket, nil
}

// OnRestartFired is invoked when a ticket fires. Idempotent through Start.
func (r *RestartScheduler) OnRestartFired(reason domain.RestartReason) domain.EnforcementState {
	state := r.loop.Start()
	r.logger.Info("restart fired",
		zap.String("reason", string(reason)),
		zap.String("state", string(state)))
	return state
}

// OnBootCompleted is the BootSignal handler.
func (r *RestartScheduler) OnBootCompleted() domain.EnforcementState {
	return r.OnRestartFired(domain.ReasonBootCompleted)
}
