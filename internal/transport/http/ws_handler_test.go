package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/auth"
	"github.com/vovakirdan/wirechat-room/internal/config"
	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/proto"
	"github.com/vovakirdan/wirechat-room/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.get(t, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	foreign, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte("wrong-secret"),
		Issuer:   env.cfg.JWTIssuer,
		Audience: env.cfg.JWTAudience,
		TTL:      time.Hour,
	}, 1, "alice", false)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
		{name: "foreign secret", token: foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.Dial(ctx, env.wsURL(tt.token), nil)
			if err == nil {
				t.Fatalf("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", resp)
			}
		})
	}
}

func TestWebSocketRejectsBannedUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := env.register(t, "alice")
	u, _ := env.store.GetUserByUsername(ctx, "alice")
	if err := env.store.SetUserStatus(ctx, u.ID, store.UserStatusBanned); err != nil {
		t.Fatalf("ban: %v", err)
	}

	_, resp, err := websocket.Dial(ctx, env.wsURL(token), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestWebSocketChatMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.register(t, "alice"), "alice")

	// Bearer header works as well as ?token=.
	bobConn, _, err := websocket.Dial(ctx, env.wsURL(""), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + env.register(t, "bob")}},
	})
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	defer bobConn.CloseNow()

	list := readUntil(t, ctx, alice, func(f frame) bool {
		return f.Event == proto.EventUserList && strings.Contains(string(f.Data), "bob")
	})
	var users proto.EventUserListData
	if err := json.Unmarshal(list.Data, &users); err != nil {
		t.Fatalf("decode user list: %v", err)
	}
	if len(users.Users) != 2 || users.Users[0].Username != "alice" || users.Users[1].Username != "bob" {
		t.Fatalf("unexpected user list: %+v", users)
	}

	sendText(t, ctx, alice, "  hi there  ")

	got := readUntil(t, ctx, bobConn, func(f frame) bool { return f.Event == proto.EventMessage })
	if got.Type != proto.OutboundTypeEvent {
		t.Fatalf("unexpected outbound type: %s", got.Type)
	}
	msg := got.message()
	if msg.Username != "alice" || msg.Text != "hi there" || msg.IsAdmin || msg.ID == 0 {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", msg.Timestamp, err)
	}
}

func TestWebSocketUnknownFrameKeepsConnection(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.register(t, "alice"), "alice")

	if err := wsjson.Write(ctx, alice, proto.Inbound{Type: "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	errFrame := readUntil(t, ctx, alice, func(f frame) bool { return f.Type == proto.OutboundTypeError })
	if errFrame.Event != proto.EventError || errFrame.Error == nil || errFrame.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("unexpected error frame: %+v", errFrame)
	}

	sendText(t, ctx, alice, "still here")
	got := readUntil(t, ctx, alice, func(f frame) bool { return f.Event == proto.EventMessage })
	if got.message().Text != "still here" {
		t.Fatalf("unexpected message: %+v", got.message())
	}
}

func TestWebSocketModeration(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root := env.dial(t, ctx, env.adminToken(t), "root")
	aliceToken := env.register(t, "alice")
	alice := env.dial(t, ctx, aliceToken, "alice")

	sendText(t, ctx, root, "/mute alice 5 spam")
	readUntil(t, ctx, alice, func(f frame) bool {
		return f.Event == proto.EventStatus && f.notice() == "alice muted for 5 minutes"
	})

	sendText(t, ctx, alice, "hello?")
	errFrame := readUntil(t, ctx, alice, func(f frame) bool { return f.Type == proto.OutboundTypeError })
	if errFrame.Error.Code != core.ErrCodeMuted || errFrame.Error.Msg != "you are muted, 5 minutes remaining, reason: spam" {
		t.Fatalf("unexpected mute error: %+v", errFrame.Error)
	}

	sendText(t, ctx, root, "/ban alice")
	readUntil(t, ctx, root, func(f frame) bool {
		return f.Event == proto.EventStatus && f.notice() == "alice has been banned"
	})

	// alice's socket is closed by the server.
	var closeErr error
	for closeErr == nil {
		var f frame
		closeErr = wsjson.Read(ctx, alice, &f)
	}
	if status := websocket.CloseStatus(closeErr); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v (%v)", status, closeErr)
	}

	waitFor(t, func() bool { return len(env.manager.Online()) == 1 })
	readUntil(t, ctx, root, func(f frame) bool {
		return f.Event == proto.EventStatus && f.notice() == "alice left the chat"
	})

	_, resp, err := websocket.Dial(ctx, env.wsURL(aliceToken), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected banned reconnect to get 403, got %v, %v", resp, err)
	}
}

// banOnJoinStore bans every account when the manager re-reads it at join,
// as if /ban landed between the token check and the upgrade.
type banOnJoinStore struct {
	core.ModerationStore
}

func (s *banOnJoinStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	if err := s.SetUserStatus(ctx, id, store.UserStatusBanned); err != nil {
		return nil, err
	}
	return s.ModerationStore.GetUserByID(ctx, id)
}

func TestWebSocketBanDuringHandshake(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "alice")

	logger := zerolog.Nop()
	hub := NewHub(env.cfg.SendBuffer, &logger)
	manager := core.NewManager(&banOnJoinStore{ModerationStore: env.store}, hub, core.WithLogger(&logger))
	srv := NewServer(env.cfg, Deps{Auth: env.auth, Store: env.store, Manager: manager, Hub: hub}, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(srv.Stop)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var f frame
	err = wsjson.Read(ctx, conn, &f)
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v (%v)", status, err)
	}
	if n := len(manager.Online()); n != 0 {
		t.Fatalf("banned session joined the room: %d online", n)
	}
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestHubDropsWhenQueueIsFull(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.SendBuffer = 1 })

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = env.hub.register("c1", cancel)
	defer env.hub.unregister("c1")

	ev := &core.Event{Kind: core.EventSystem, Text: "one"}
	if !env.hub.Send("c1", ev) {
		t.Fatalf("first send must be queued")
	}
	if env.hub.Send("c1", ev) {
		t.Fatalf("second send must be dropped")
	}
	if env.hub.Send("unknown", ev) {
		t.Fatalf("send to unknown connection must fail")
	}
}

func TestHubCloseMarksKicked(t *testing.T) {
	env := newTestEnv(t, nil)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, kick := env.hub.register("c1", cancel)

	env.hub.Close("c1")
	env.hub.Close("c1")
	select {
	case <-kick:
	default:
		t.Fatalf("expected kick channel to be closed")
	}
	if !env.hub.unregister("c1") {
		t.Fatalf("expected kicked=true after Close")
	}
	if env.hub.unregister("c1") {
		t.Fatalf("second unregister must report false")
	}
}
