// Package daemon runs the long-lived appguard process hosting the
// enforcement subsystem.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
	"github.com/eliteGoblin/focusd/app_guard/internal/usecase"
)

// Config holds daemon configuration.
type Config struct {
	HeartbeatInterval       time.Duration // How often to publish the status record
	CapabilityCheckInterval time.Duration // How often to check the autostart entry
	PolicySyncInterval      time.Duration // How often to re-read the policy toggle
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:       DefaultHeartbeat,
		CapabilityCheckInterval: 5 * time.Second,
		PolicySyncInterval:      2 * time.Second,
	}
}

// Daemon hosts one Subsystem. It enters the loop through the restart
// scheduler, publishes its status for the CLI, and polls for capability and
// policy changes made by other processes.
type Daemon struct {
	config    Config
	sys       *usecase.Subsystem
	status    domain.StatusStore
	pm        domain.ProcessManager
	version   string
	logger    *zap.Logger
	startedAt time.Time
	now       func() time.Time
}

// New creates a daemon around an already wired subsystem.
func New(
	config Config,
	sys *usecase.Subsystem,
	status domain.StatusStore,
	pm domain.ProcessManager,
	version string,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		config:  config,
		sys:     sys,
		status:  status,
		pm:      pm,
		version: version,
		logger:  logger,
		now:     time.Now,
	}
}

// Run enters the loop and blocks until ctx is canceled. On the way out it
// stops the loop, which schedules the restart ticket.
// An empty reason means an explicit start.
func (d *Daemon) Run(ctx context.Context, reason domain.RestartReason) error {
	d.startedAt = d.now()

	d.sys.Loop.OnStateChange(func(domain.EnforcementState) { d.publish() })
	d.sys.Guard.OnStateChange(func(domain.CapabilityState) { d.publish() })

	var state domain.EnforcementState
	switch reason {
	case domain.ReasonBootCompleted:
		state = d.sys.Restarts.OnBootCompleted()
	case domain.ReasonKilled:
		state = d.sys.Restarts.OnRestartFired(reason)
	default:
		state = d.sys.StartEnforcement()
	}

	d.logger.Info("appguard daemon started",
		zap.Int("pid", d.pm.GetCurrentPID()),
		zap.String("reason", string(reason)),
		zap.String("state", string(state)),
		zap.String("capability", string(d.sys.CapabilityStatus())))
	d.publish()

	// Catch an entry removed while we were down.
	d.sys.Guard.CheckCapability(usecase.SourceStartup)

	heartbeatTicker := time.NewTicker(d.config.HeartbeatInterval)
	capabilityTicker := time.NewTicker(d.config.CapabilityCheckInterval)
	policyTicker := time.NewTicker(d.config.PolicySyncInterval)

	defer func() {
		heartbeatTicker.Stop()
		capabilityTicker.Stop()
		policyTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("appguard daemon stopping")
			d.sys.StopEnforcement()
			d.publish()
			return nil

		case <-heartbeatTicker.C:
			d.publish()

		case <-capabilityTicker.C:
			d.sys.Guard.CheckCapability("autostart-check")

		case <-policyTicker.C:
			d.sys.Loop.Reconcile()
		}
	}
}

func (d *Daemon) publish() {
	record := domain.StatusRecord{
		PID:           d.pm.GetCurrentPID(),
		Enforcement:   d.sys.EnforcementStatus(),
		Capability:    d.sys.CapabilityStatus(),
		LastHeartbeat: d.now().Unix(),
		StartedAt:     d.startedAt.Unix(),
		AppVersion:    d.version,
	}
	if err := d.status.SaveStatus(record); err != nil {
		d.logger.Warn("failed to publish status", zap.Error(err))
	}
}
