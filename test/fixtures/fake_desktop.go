// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// FakeDesktop stands in for the platform side of the daemon. The foreground
// app is set by the test; every side effect is recorded.
type FakeDesktop struct {
	mu         sync.Mutex
	foreground string
	suppressed []string
	summaries  []string
	warnings   []string
	tickets    []domain.RestartTicket
	granted    bool
	relaunches int
	held       bool
}

// NewFakeDesktop returns a desktop with the capability granted and
// nothing in the foreground.
func NewFakeDesktop() *FakeDesktop {
	return &FakeDesktop{granted: true}
}

// SetForeground switches the focused app. Empty means unknown.
func (f *FakeDesktop) SetForeground(applicationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = applicationID
}

// SetGranted simulates the user removing or restoring the autostart entry.
func (f *FakeDesktop) SetGranted(granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = granted
}

func (f *FakeDesktop) Foreground(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.foreground == "" {
		return "", domain.ErrForegroundUnknown
	}
	return f.foreground, nil
}

// Suppress records the app and moves focus away from it.
func (f *FakeDesktop) Suppress(_ context.Context, applicationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressed = append(f.suppressed, applicationID)
	f.foreground = ""
	return nil
}

func (f *FakeDesktop) Notify(summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *FakeDesktop) ShowWarning(title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, title)
	return nil
}

func (f *FakeDesktop) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = true
	return nil
}

func (f *FakeDesktop) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	return nil
}

func (f *FakeDesktop) IsHeld() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

func (f *FakeDesktop) Schedule(ticket domain.RestartTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *FakeDesktop) IsGranted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

func (f *FakeDesktop) RequestGrant() error {
	f.SetGranted(true)
	return nil
}

func (f *FakeDesktop) Relaunch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relaunches++
	return nil
}

// Suppressed returns every app suppressed so far.
func (f *FakeDesktop) Suppressed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.suppressed...)
}

// Summaries returns every status notification so far.
func (f *FakeDesktop) Summaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.summaries...)
}

// Warnings returns the titles of every warning shown.
func (f *FakeDesktop) Warnings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.warnings...)
}

// Tickets returns every scheduled restart ticket.
func (f *FakeDesktop) Tickets() []domain.RestartTicket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RestartTicket(nil), f.tickets...)
}

// Relaunches returns how often the corrective relaunch ran.
func (f *FakeDesktop) Relaunches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relaunches
}

var (
	_ domain.ForegroundQuery      = (*FakeDesktop)(nil)
	_ domain.SuppressionAction    = (*FakeDesktop)(nil)
	_ domain.Notifier             = (*FakeDesktop)(nil)
	_ domain.WarningPresenter     = (*FakeDesktop)(nil)
	_ domain.LivenessHold         = (*FakeDesktop)(nil)
	_ domain.DeferredScheduler    = (*FakeDesktop)(nil)
	_ domain.PrivilegedCapability = (*FakeDesktop)(nil)
	_ domain.Relauncher           = (*FakeDesktop)(nil)
)
