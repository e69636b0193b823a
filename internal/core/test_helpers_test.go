package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirechat-room/internal/store/sqlite"
)

// fakeTransport records everything the core delivers.
type fakeTransport struct {
	mu     sync.Mutex
	events map[string][]*Event
	closed []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(map[string][]*Event)}
}

func (f *fakeTransport) Send(connID string, ev *Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[connID] = append(f.events[connID], ev)
	return true
}

func (f *fakeTransport) Close(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connID)
}

// take returns and forgets the events delivered to connID so far.
func (f *fakeTransport) take(connID string) []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := f.events[connID]
	delete(f.events, connID)
	return evs
}

func (f *fakeTransport) closedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type harness struct {
	mgr *Manager
	tr  *fakeTransport
	st  *sqlite.SQLiteStore
	clk *clock.Mock
}

func newHarness(t *testing.T, wrap func(ModerationStore) ModerationStore) *harness {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	st, err := sqlite.New(":memory:", sqlite.WithClock(clk))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var ms ModerationStore = st
	if wrap != nil {
		ms = wrap(st)
	}

	tr := newFakeTransport()
	return &harness{
		mgr: NewManager(ms, tr, WithClock(clk)),
		tr:  tr,
		st:  st,
		clk: clk,
	}
}

// join creates the account and connects it on connID, discarding join traffic.
func (h *harness) join(t *testing.T, connID, username string, admin bool) Identity {
	t.Helper()
	id := h.identity(t, username, admin)
	if err := h.mgr.Connect(context.Background(), connID, id); err != nil {
		t.Fatalf("connect %s: %v", username, err)
	}
	h.drain()
	return id
}

func (h *harness) identity(t *testing.T, username string, admin bool) Identity {
	t.Helper()
	ctx := context.Background()
	if u, err := h.st.GetUserByUsername(ctx, username); err == nil {
		return Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
	}
	u, err := h.st.CreateUser(ctx, username, "hash", nil, admin)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

func (h *harness) drain() {
	h.tr.mu.Lock()
	defer h.tr.mu.Unlock()
	h.tr.events = make(map[string][]*Event)
}

func (h *harness) say(connID, text string) {
	h.mgr.HandleMessage(context.Background(), connID, text)
}

func mustEvent(t *testing.T, evs []*Event, kind EventKind) *Event {
	t.Helper()
	for _, ev := range evs {
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("expected event kind %v not received, got %v", kind, kinds(evs))
	return nil
}

func countKind(evs []*Event, kind EventKind) int {
	n := 0
	for _, ev := range evs {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func kinds(evs []*Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind.String())
	}
	return out
}
