package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// ErrAlreadyRunning is returned when another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("appguard daemon already running")

// SelfLauncher relaunches appguard by self-exec in a new session.
type SelfLauncher struct {
	runner   CommandRunner
	execPath string
	args     []string
}

// NewSelfLauncher returns a launcher running `execPath args...`.
func NewSelfLauncher(runner CommandRunner, execPath string, args ...string) *SelfLauncher {
	return &SelfLauncher{runner: runner, execPath: execPath, args: args}
}

// Relaunch starts the command detached from the caller.
func (l *SelfLauncher) Relaunch() error {
	if _, err := l.runner.StartDetached(l.execPath, l.args...); err != nil {
		return fmt.Errorf("failed to relaunch %s: %w", l.execPath, err)
	}
	return nil
}

// InstanceLock is an exclusive flock on a file in the data directory.
// It guarantees one daemon process per data directory.
type InstanceLock struct {
	file *os.File
}

// AcquireInstanceLock takes the lock without blocking.
// Returns ErrAlreadyRunning when another process holds it.
func AcquireInstanceLock(dataDir string) (*InstanceLock, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "appguard.lock"), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return &InstanceLock{file: f}, nil
}

// Release drops the lock.
func (l *InstanceLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}

var _ domain.Relauncher = (*SelfLauncher)(nil)
