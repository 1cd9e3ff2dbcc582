package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// mockPolicyStore implements domain.PolicyStore in memory.
type mockPolicyStore struct {
	mu      sync.Mutex
	blocked map[string]bool
	enabled bool
}

func newMockPolicyStore(enabled bool, ids ...string) *mockPolicyStore {
	s := &mockPolicyStore{blocked: make(map[string]bool), enabled: enabled}
	for _, id := range ids {
		s.blocked[id] = true
	}
	return s
}

func (s *mockPolicyStore) SetBlocked(id string, blocked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blocked {
		s.blocked[id] = true
	} else {
		delete(s.blocked, id)
	}
	return true
}

func (s *mockPolicyStore) IsBlocked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked[id]
}

func (s *mockPolicyStore) ListBlocked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.blocked))
	for id := range s.blocked {
		ids = append(ids, id)
	}
	return ids
}

func (s *mockPolicyStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = make(map[string]bool)
	return true
}

func (s *mockPolicyStore) BlockingEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *mockPolicyStore) SetBlockingEnabled(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return true
}

// scriptedQuery answers from a fixed script, then repeats the last answer.
type scriptedQuery struct {
	mu      sync.Mutex
	answers []string
	calls   int
	delay   time.Duration
	delays  []time.Duration // per call, overrides delay
	panics  bool
}

func (q *scriptedQuery) Foreground(ctx context.Context) (string, error) {
	q.mu.Lock()
	q.calls++
	i := q.calls - 1
	delay := q.delay
	if i < len(q.delays) {
		delay = q.delays[i]
	}
	q.mu.Unlock()

	if q.panics {
		panic("query exploded")
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if len(q.answers) == 0 {
		return "", domain.ErrForegroundUnknown
	}
	if i >= len(q.answers) {
		i = len(q.answers) - 1
	}
	if q.answers[i] == "" {
		return "", domain.ErrForegroundUnknown
	}
	return q.answers[i], nil
}

func (q *scriptedQuery) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// mockSuppressor records suppressed ids and can fail the first N calls.
type mockSuppressor struct {
	mu        sync.Mutex
	ids       []string
	failFirst int
	attempts  int
}

func (s *mockSuppressor) Suppress(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failFirst {
		return errors.New("window manager unavailable")
	}
	s.ids = append(s.ids, id)
	return nil
}

func (s *mockSuppressor) Suppressed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

type mockNotifier struct {
	mu        sync.Mutex
	summaries []string
}

func (n *mockNotifier) Notify(summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

func (n *mockNotifier) Summaries() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.summaries...)
}

type mockHold struct {
	mu       sync.Mutex
	held     bool
	acquires int
	releases int
}

func (h *mockHold) Acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquires++
	h.held = true
	return nil
}

func (h *mockHold) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases++
	h.held = false
	return nil
}

func (h *mockHold) IsHeld() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.held
}

type mockDeferred struct {
	mu      sync.Mutex
	tickets []domain.RestartTicket
	err     error
}

func (d *mockDeferred) Schedule(ticket domain.RestartTicket) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tickets = append(d.tickets, ticket)
	return nil
}

func (d *mockDeferred) Tickets() []domain.RestartTicket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.RestartTicket(nil), d.tickets...)
}

type mockCapability struct {
	mu      sync.Mutex
	granted bool
	grants  int
}

func (c *mockCapability) IsGranted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted
}

func (c *mockCapability) RequestGrant() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants++
	c.granted = true
	return nil
}

func (c *mockCapability) set(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.granted = granted
}

type mockWarner struct {
	calls int
	err   error
	panic bool
}

func (w *mockWarner) ShowWarning(_, _ string) error {
	w.calls++
	if w.panic {
		panic("no display")
	}
	return w.err
}

type mockRelauncher struct {
	calls int
	err   error
}

func (r *mockRelauncher) Relaunch() error {
	r.calls++
	return r.err
}

type mockDegradable struct {
	revoked int
	granted int
}

func (d *mockDegradable) OnCapabilityRevoked() { d.revoked++ }
func (d *mockDegradable) OnCapabilityGranted() { d.granted++ }
