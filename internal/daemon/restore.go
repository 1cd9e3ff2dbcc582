package daemon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// EntryRestorer is the corrective action run on a revoke attempt: it puts
// the autostart entry back so the next boot still starts appguard.
type EntryRestorer struct {
	autostart domain.AutostartManager
	execPath  string
	logger    *zap.Logger
}

// NewEntryRestorer creates a restorer installing entries that run execPath.
func NewEntryRestorer(autostart domain.AutostartManager, execPath string, logger *zap.Logger) *EntryRestorer {
	return &EntryRestorer{
		autostart: autostart,
		execPath:  execPath,
		logger:    logger,
	}
}

// Relaunch restores a missing entry, or rewrites one whose content differs.
func (r *EntryRestorer) Relaunch() error {
	if !r.autostart.IsInstalled() {
		r.logger.Info("autostart entry missing, restoring...", zap.String("path", r.autostart.GetPath()))
		if err := r.autostart.Install(r.execPath); err != nil {
			return fmt.Errorf("failed to restore autostart entry: %w", err)
		}
		r.logger.Info("autostart entry restored successfully")
		return nil
	}

	if r.autostart.NeedsUpdate(r.execPath) {
		r.logger.Info("autostart entry outdated, updating...")
		if err := r.autostart.Update(r.execPath); err != nil {
			return fmt.Errorf("failed to update autostart entry: %w", err)
		}
	}
	return nil
}

var _ domain.Relauncher = (*EntryRestorer)(nil)
