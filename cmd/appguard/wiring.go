package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/app_guard/internal/config"
	"github.com/eliteGoblin/focusd/app_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
	"github.com/eliteGoblin/focusd/app_guard/internal/infra"
	"github.com/eliteGoblin/focusd/app_guard/internal/usecase"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	mode   *infra.ExecModeConfig
	runner infra.CommandRunner
	pm     domain.ProcessManager
	logger *zap.Logger
}

var detectExecMode = infra.DetectExecMode

func newApp(logName string) (*app, error) {
	mode := detectExecMode()
	if err := mode.RequireDesktopUser(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DataDir != "" {
		mode.DataDir = cfg.DataDir
	}

	return &app{
		cfg:    cfg,
		mode:   mode,
		runner: infra.NewCommandRunner(),
		pm:     infra.NewProcessManager(),
		logger: createLogger(cfg.LogDir, logName, cfg.LogLevel),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) openStore() (*infra.SQLPolicyStore, error) {
	store, err := infra.OpenPolicyStore(a.mode.DataDir, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy store: %w", err)
	}
	return store, nil
}

func (a *app) autostart() domain.AutostartManager {
	return infra.NewAutostartManager(a.mode, a.cfg.LogDir, a.runner)
}

// liveStatus returns the published status of a running daemon, or nil.
func (a *app) liveStatus(store domain.StatusStore) *domain.StatusRecord {
	status, err := store.LoadStatus()
	if err != nil {
		a.logger.Warn("failed to load daemon status", zap.Error(err))
		return nil
	}
	if !daemon.IsAlive(status, a.pm, nowFunc()) {
		return nil
	}
	return status
}

// runDaemon hosts the subsystem in this process until SIGINT/SIGTERM.
func (a *app) runDaemon(reason domain.RestartReason) error {
	lock, err := infra.AcquireInstanceLock(a.mode.DataDir)
	if errors.Is(err, infra.ErrAlreadyRunning) {
		// A fired ticket or boot signal racing a live daemon is a no-op.
		a.logger.Info("daemon already running, nothing to do", zap.String("reason", string(reason)))
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	goos := a.mode.GOOS
	desktop := infra.NewDesktopIntegration(goos, a.runner, a.pm, a.logger)
	autostart := a.autostart()

	sys := usecase.NewSubsystem(usecase.Deps{
		Store:      store,
		Query:      infra.NewForegroundQuery(goos, a.runner, a.pm),
		Suppressor: desktop,
		Notifier:   desktop,
		Hold:       infra.NewInhibitorHold(goos, a.runner, a.pm),
		Deferred:   infra.NewDeferredScheduler(a.mode, a.runner, execPath),
		Capability: infra.NewAutostartCapability(autostart, execPath),
		Warner:     desktop,
		Relauncher: daemon.NewEntryRestorer(autostart, execPath, a.logger),
	}, usecase.LoopConfig{
		PollInterval: a.cfg.PollInterval,
		QueryTimeout: a.cfg.QueryTimeout,
		RestartDelay: a.cfg.RestartDelay,
	}, a.logger)

	d := daemon.New(daemon.Config{
		HeartbeatInterval:       a.cfg.HeartbeatInterval,
		CapabilityCheckInterval: a.cfg.CapabilityCheckInterval,
		PolicySyncInterval:      a.cfg.PolicySyncInterval,
	}, sys, store, a.pm, Version, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx, reason)
}

func createLogger(logDir, name, level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{filepath.Join(logDir, name+".log")}
	config.ErrorOutputPaths = []string{filepath.Join(logDir, name+".error.log")}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
