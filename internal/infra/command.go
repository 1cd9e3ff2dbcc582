package infra

import (
	"context"
	"os/exec"
	"syscall"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// Run executes a command and waits for it to complete.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// StartDetached launches a command in its own session and does not wait.
	// Returns the child's PID.
	StartDetached(name string, args ...string) (int, error)

	// LookPath reports whether a binary is on PATH.
	LookPath(name string) bool
}

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// NewCommandRunner returns the os/exec backed runner.
func NewCommandRunner() CommandRunner {
	return &RealCommandRunner{}
}

func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (r *RealCommandRunner) StartDetached(name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)

	// New session: the child survives our death and has no controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap in the background so short-lived children don't linger as zombies.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func (r *RealCommandRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
