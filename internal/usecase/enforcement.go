package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const (
	// DefaultPollInterval is how often the foreground app is checked while enforcing.
	DefaultPollInterval = 1000 * time.Millisecond
	// DefaultRestartDelay is how long after stop() the daemon is resurrected.
	DefaultRestartDelay = 5000 * time.Millisecond

	summaryEnforcing = "Monitoring and blocking apps"
	summaryIdle      = "Service running"
)

// LoopConfig holds enforcement loop configuration.
type LoopConfig struct {
	PollInterval time.Duration // How often to query the foreground app
	QueryTimeout time.Duration // Upper bound per query, at most PollInterval
	RestartDelay time.Duration // Delay of the restart ticket issued by Stop
}

// DefaultLoopConfig returns default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		PollInterval: DefaultPollInterval,
		QueryTimeout: DefaultPollInterval,
		RestartDelay: DefaultRestartDelay,
	}
}

// dedupeWindow is how close two observations of the same app must be for
// the second to be treated as a monitor restart duplicate.
func (c LoopConfig) dedupeWindow() time.Duration {
	return c.PollInterval / 2
}

type restartTicketer interface {
	ScheduleRestart(delay time.Duration, reason domain.RestartReason) (domain.RestartTicket, error)
}

// EnforcementLoop owns the daemon lifecycle (Stopped/Idle/Enforcing), the
// liveness hold, and the monitor -> policy -> suppression pipeline.
type EnforcementLoop struct {
	// lifecycle serializes Start/Stop/Reconcile. mu guards the fields below
	// it and is the only lock taken by the observation consumer.
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu               sync.Mutex
	state            domain.EnforcementState
	degraded         bool
	lastSuppressedID string
	lastSuppressedAt time.Time
	onStateChange    func(domain.EnforcementState)

	config     LoopConfig
	monitor    *ForegroundMonitor
	store      domain.PolicyStore
	suppressor domain.SuppressionAction
	notifier   domain.Notifier
	hold       domain.LivenessHold
	restarts   restartTicketer
	logger     *zap.Logger
}

// NewEnforcementLoop creates a loop in the Stopped state. The restart
// ticketer is bound by NewSubsystem.
func NewEnforcementLoop(
	config LoopConfig,
	monitor *ForegroundMonitor,
	store domain.PolicyStore,
	suppressor domain.SuppressionAction,
	notifier domain.Notifier,
	hold domain.LivenessHold,
	logger *zap.Logger,
) *EnforcementLoop {
	return &EnforcementLoop{
		state:      domain.StateStopped,
		config:     config,
		monitor:    monitor,
		store:      store,
		suppressor: suppressor,
		notifier:   notifier,
		hold:       hold,
		logger:     logger,
	}
}

// OnStateChange registers a hook called after every state transition.
func (l *EnforcementLoop) OnStateChange(fn func(domain.EnforcementState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStateChange = fn
}

// State returns the current enforcement state.
func (l *EnforcementLoop) State() domain.EnforcementState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Degraded reports whether the loop runs without anti-disable protection.
func (l *EnforcementLoop) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// Start moves Stopped/Idle to Enforcing when the policy toggle is on, to
// Idle otherwise. Starting while Enforcing is a no-op.
func (l *EnforcementLoop) Start() domain.EnforcementState {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if err := l.hold.Acquire(); err != nil {
		l.logger.Warn("failed to acquire liveness hold", zap.Error(err))
	}

	if !l.store.BlockingEnabled() {
		l.stopMonitoring()
		return l.transition(domain.StateIdle)
	}

	if l.cancel != nil {
		l.logger.Debug("start requested while enforcing, ignoring")
		return l.State()
	}

	l.startMonitoring()
	return l.transition(domain.StateEnforcing)
}

// Stop tears the loop down, releases the liveness hold and schedules a
// restart ticket. It schedules whatever the prior state was.
func (l *EnforcementLoop) Stop() domain.EnforcementState {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.stopMonitoring()

	if err := l.hold.Release(); err != nil {
		l.logger.Warn("failed to release liveness hold", zap.Error(err))
	}

	if l.restarts != nil {
		ticket, err := l.restarts.ScheduleRestart(l.config.RestartDelay, domain.ReasonKilled)
		if err != nil {
			l.logger.Error("failed to schedule restart", zap.Error(err))
		} else {
			l.logger.Info("restart scheduled",
				zap.String("ticket", ticket.ID),
				zap.Time("fire_at", ticket.FireAt()))
		}
	}

	return l.transition(domain.StateStopped)
}

// SetPolicyEnabled persists the policy toggle and applies it to a running loop.
func (l *EnforcementLoop) SetPolicyEnabled(enabled bool) bool {
	if !l.store.SetBlockingEnabled(enabled) {
		return false
	}
	l.Reconcile()
	return true
}

// Reconcile applies the persisted policy toggle: Idle <-> Enforcing.
// A stopped loop stays stopped.
func (l *EnforcementLoop) Reconcile() domain.EnforcementState {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	current := l.State()
	if current == domain.StateStopped {
		return current
	}

	enabled := l.store.BlockingEnabled()
	switch {
	case enabled && current == domain.StateIdle:
		l.startMonitoring()
		return l.transition(domain.StateEnforcing)
	case !enabled && current == domain.StateEnforcing:
		l.stopMonitoring()
		return l.transition(domain.StateIdle)
	}
	return current
}

// OnCapabilityRevoked keeps enforcing without anti-disable protection.
func (l *EnforcementLoop) OnCapabilityRevoked() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.degraded {
		l.logger.Warn("elevated capability revoked, continuing in degraded mode",
			zap.String("state", string(l.state)))
	}
	l.degraded = true
}

// OnCapabilityGranted leaves degraded mode.
func (l *EnforcementLoop) OnCapabilityGranted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded = false
}

// HandleObservation suppresses the observed app if it is blocked.
// Returns true if a suppression was issued. Does not change state.
func (l *EnforcementLoop) HandleObservation(ctx context.Context, obs domain.ForegroundObservation) bool {
	l.mu.Lock()
	if l.state != domain.StateEnforcing {
		l.mu.Unlock()
		return false
	}
	if obs.ApplicationID == l.lastSuppressedID {
		since := obs.ObservedAt.Sub(l.lastSuppressedAt)
		if since >= 0 && since < l.config.dedupeWindow() {
			l.mu.Unlock()
			l.logger.Debug("duplicate observation, suppression already issued",
				zap.String("app_id", obs.ApplicationID))
			return false
		}
	}
	l.mu.Unlock()

	if !l.store.IsBlocked(obs.ApplicationID) {
		return false
	}

	sctx, cancel := context.WithTimeout(ctx, l.config.PollInterval)
	defer cancel()
	if err := l.suppressor.Suppress(sctx, obs.ApplicationID); err != nil {
		// Not recorded, so the next tick retries.
		l.logger.Warn("failed to suppress blocked app, retrying next tick",
			zap.String("app_id", obs.ApplicationID),
			zap.Error(err))
		return false
	}

	l.mu.Lock()
	l.lastSuppressedID = obs.ApplicationID
	l.lastSuppressedAt = obs.ObservedAt
	l.mu.Unlock()

	l.logger.Info("blocked app suppressed", zap.String("app_id", obs.ApplicationID))
	return true
}

// startMonitoring launches the monitor and its consumer. Caller holds lifecycle.
func (l *EnforcementLoop) startMonitoring() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	observations := l.monitor.Observe(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for obs := range observations {
			l.HandleObservation(ctx, obs)
		}
	}()
}

// stopMonitoring cancels the monitor and waits for the consumer. Caller holds lifecycle.
func (l *EnforcementLoop) stopMonitoring() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.wg.Wait()

	l.mu.Lock()
	l.lastSuppressedID = ""
	l.lastSuppressedAt = time.Time{}
	l.mu.Unlock()
}

// transition sets the state and runs the side effects of entering it.
func (l *EnforcementLoop) transition(next domain.EnforcementState) domain.EnforcementState {
	l.mu.Lock()
	prev := l.state
	l.state = next
	hook := l.onStateChange
	l.mu.Unlock()

	if prev == next {
		return next
	}

	l.logger.Info("enforcement state changed",
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	switch next {
	case domain.StateEnforcing:
		l.notify(summaryEnforcing)
	case domain.StateIdle:
		l.notify(summaryIdle)
	}

	if hook != nil {
		hook(next)
	}
	return next
}

func (l *EnforcementLoop) notify(summary string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(summary); err != nil {
		l.logger.Debug("failed to update status notification", zap.Error(err))
	}
}
