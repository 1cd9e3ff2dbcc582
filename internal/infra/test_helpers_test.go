package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu           sync.Mutex
	runningPIDs  map[int]bool
	names        map[int]string
	terminated   []int
	terminateErr error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminated = append(m.terminated, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

// mockCommandRunner records every command and answers from canned outputs.
// Keys are the full command line joined by spaces.
type mockCommandRunner struct {
	mu       sync.Mutex
	calls    []string
	detached []string
	outputs  map[string]string
	errs     map[string]error
	paths    map[string]bool
	nextPID  int
	pm       *mockProcessManager // marks detached children running when set
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
		paths:   make(map[string]bool),
		nextPID: 1000,
	}
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (m *mockCommandRunner) Run(_ context.Context, name string, args ...string) error {
	_, err := m.Output(context.Background(), name, args...)
	return err
}

func (m *mockCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := commandLine(name, args)
	m.calls = append(m.calls, line)
	if err, ok := m.errs[line]; ok {
		return nil, err
	}
	if err, ok := m.errs[name]; ok {
		return nil, err
	}
	return []byte(m.outputs[line]), nil
}

func (m *mockCommandRunner) StartDetached(name string, args ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := commandLine(name, args)
	m.detached = append(m.detached, line)
	if err, ok := m.errs[name]; ok {
		return 0, err
	}
	m.nextPID++
	if m.pm != nil {
		m.pm.SetRunning(m.nextPID, true)
	}
	return m.nextPID, nil
}

func (m *mockCommandRunner) LookPath(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paths[name]
}

func (m *mockCommandRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCommandRunner) Detached() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.detached...)
}
