// Package infra implements infrastructure concerns (store, OS scheduling, desktop integration).
package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrRunAsRoot is returned when appguard is invoked with root privileges.
// The foreground query and suppression talk to the user's desktop session,
// which a root service does not have.
var ErrRunAsRoot = errors.New("appguard runs in the desktop user's session, run it without sudo")

const (
	// AutostartLabel is the launchd label and systemd unit base name.
	AutostartLabel = "com.focusd.appguard"
	systemdUnit    = "appguard.service"
	binaryName     = "appguard"
)

// ExecModeConfig holds the per-user paths for the platform.
type ExecModeConfig struct {
	GOOS          string
	BinaryPath    string // Where the binary should be installed
	AutostartDir  string // Where the unit/plist file goes
	AutostartPath string // Full path to unit/plist file
	DataDir       string // Where the encrypted policy store and key live
	IsRoot        bool
}

// DetectExecMode returns the paths for the current user and platform.
func DetectExecMode() *ExecModeConfig {
	home, _ := os.UserHomeDir()
	return execModeFor(runtime.GOOS, os.Geteuid() == 0, home)
}

func execModeFor(goos string, isRoot bool, home string) *ExecModeConfig {
	cfg := &ExecModeConfig{
		GOOS:       goos,
		IsRoot:     isRoot,
		BinaryPath: filepath.Join(home, ".local", "bin", binaryName),
		DataDir:    filepath.Join(home, ".appguard"),
	}
	if goos == "darwin" {
		cfg.AutostartDir = filepath.Join(home, "Library", "LaunchAgents")
		cfg.AutostartPath = filepath.Join(cfg.AutostartDir, AutostartLabel+".plist")
	} else {
		cfg.AutostartDir = filepath.Join(home, ".config", "systemd", "user")
		cfg.AutostartPath = filepath.Join(cfg.AutostartDir, systemdUnit)
	}
	return cfg
}

// RequireDesktopUser rejects root. Under sudo the error names the user to
// run as instead.
func (c *ExecModeConfig) RequireDesktopUser() error {
	if !c.IsRoot {
		return nil
	}
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return fmt.Errorf("%w (run it as %s)", ErrRunAsRoot, sudoUser)
	}
	return ErrRunAsRoot
}
