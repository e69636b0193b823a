package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirechat-room/internal/store"
)

func newTestStore(t *testing.T) (*SQLiteStore, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	s, err := New(":memory:", WithClock(clk))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func mustCreateUser(t *testing.T, s *SQLiteStore, username string, admin bool) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, "hash", nil, admin)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func TestCreateAndLookupUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	email := "alice@example.com"
	created, err := s.CreateUser(ctx, "alice", "hash", &email, false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Status != store.UserStatusActive || created.IsAdmin {
		t.Fatalf("unexpected defaults: %+v", created)
	}
	if created.Email == nil || *created.Email != email {
		t.Fatalf("expected email to round-trip, got %v", created.Email)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("expected id %d, got %d", created.ID, byName.ID)
	}

	if _, err := s.GetUserByUsername(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice", "hash", nil, false); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate username, got %v", err)
	}
}

func TestSetUserStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, s, "bob", false)

	if err := s.SetUserStatus(ctx, u.ID, store.UserStatusBanned); err != nil {
		t.Fatalf("ban: %v", err)
	}
	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.Banned() {
		t.Fatalf("expected banned user, got status %q", got.Status)
	}

	if err := s.SetUserStatus(ctx, u.ID, store.UserStatusActive); err != nil {
		t.Fatalf("unban: %v", err)
	}
	got, _ = s.GetUserByID(ctx, u.ID)
	if got.Banned() {
		t.Fatalf("expected active user after unban")
	}

	if err := s.SetUserStatus(ctx, 999, store.UserStatusBanned); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestMuteExpiryBoundary(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	admin := mustCreateUser(t, s, "root", true)
	alice := mustCreateUser(t, s, "alice", false)

	if _, err := s.MuteUser(ctx, alice.ID, admin.ID, 5*time.Minute, "spam"); err != nil {
		t.Fatalf("mute: %v", err)
	}

	tests := []struct {
		name    string
		advance time.Duration
		muted   bool
	}{
		{name: "immediately", advance: 0, muted: true},
		{name: "just before expiry", advance: 5*time.Minute - time.Second, muted: true},
		{name: "exactly at expiry", advance: time.Second, muted: false},
		{name: "after expiry", advance: time.Minute, muted: false},
	}

	for _, tt := range tests {
		clk.Add(tt.advance)
		muted, err := s.IsMuted(ctx, alice.ID)
		if err != nil {
			t.Fatalf("%s: is muted: %v", tt.name, err)
		}
		if muted != tt.muted {
			t.Fatalf("%s: expected muted=%v, got %v", tt.name, tt.muted, muted)
		}
	}
}

func TestActiveMutePicksMostRecent(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	admin := mustCreateUser(t, s, "root", true)
	alice := mustCreateUser(t, s, "alice", false)

	mute, err := s.ActiveMute(ctx, alice.ID)
	if err != nil || mute != nil {
		t.Fatalf("expected no active mute, got %+v, %v", mute, err)
	}

	if _, err := s.MuteUser(ctx, alice.ID, admin.ID, 10*time.Minute, "first"); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if _, err := s.MuteUser(ctx, alice.ID, admin.ID, 2*time.Minute, ""); err != nil {
		t.Fatalf("mute: %v", err)
	}

	mute, err = s.ActiveMute(ctx, alice.ID)
	if err != nil {
		t.Fatalf("active mute: %v", err)
	}
	if mute == nil || mute.Reason != "" || !mute.MutedUntil.Equal(clk.Now().Add(2*time.Minute)) {
		t.Fatalf("expected the latest mute, got %+v", mute)
	}

	// Once the newest record lapses the older, longer one is still active.
	clk.Add(3 * time.Minute)
	mute, err = s.ActiveMute(ctx, alice.ID)
	if err != nil {
		t.Fatalf("active mute: %v", err)
	}
	if mute == nil || mute.Reason != "first" {
		t.Fatalf("expected the first mute to remain active, got %+v", mute)
	}
}

func TestUnmuteIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	admin := mustCreateUser(t, s, "root", true)
	alice := mustCreateUser(t, s, "alice", false)

	if err := s.UnmuteUser(ctx, alice.ID); err != nil {
		t.Fatalf("unmute without mutes: %v", err)
	}

	for _, d := range []time.Duration{time.Minute, time.Hour} {
		if _, err := s.MuteUser(ctx, alice.ID, admin.ID, d, ""); err != nil {
			t.Fatalf("mute: %v", err)
		}
	}
	if err := s.UnmuteUser(ctx, alice.ID); err != nil {
		t.Fatalf("unmute: %v", err)
	}

	muted, err := s.IsMuted(ctx, alice.ID)
	if err != nil {
		t.Fatalf("is muted: %v", err)
	}
	if muted {
		t.Fatalf("expected all mutes to be expired")
	}
}

func TestRecentMessagesOrdering(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice", false)

	for _, text := range []string{"one", "two", "three", "four"} {
		clk.Add(time.Second)
		msg := &store.Message{UserID: alice.ID, Username: alice.Username, Text: text, CreatedAt: clk.Now()}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message: %v", err)
		}
		if msg.ID == 0 {
			t.Fatalf("expected id to be assigned")
		}
	}

	msgs, err := s.RecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	want := []string{"two", "three", "four"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, m := range msgs {
		if m.Text != want[i] {
			t.Errorf("expected %q at index %d, got %q", want[i], i, m.Text)
		}
	}

	empty, err := s.RecentMessages(ctx, 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no messages for zero limit, got %v, %v", empty, err)
	}
}

func TestSaveFile(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice", false)

	rec := &store.FileRecord{
		UserID:          alice.ID,
		Filename:        "cat.png",
		StorageFilename: "0b7c.png",
		FileType:        "image/png",
		FileSize:        42,
	}
	if err := s.SaveFile(ctx, rec); err != nil {
		t.Fatalf("save file: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	dup := *rec
	dup.ID = 0
	if err := s.SaveFile(ctx, &dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for reused storage name, got %v", err)
	}
}

func TestCountAdmins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountAdmins(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 admins, got %d, %v", n, err)
	}
	mustCreateUser(t, s, "root", true)
	mustCreateUser(t, s, "alice", false)

	n, err = s.CountAdmins(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 admin, got %d, %v", n, err)
	}
}
