package http

import (
	"bytes"
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
	"github.com/vovakirdan/wirechat-room/internal/store/sqlite"
)

type testEnv struct {
	ts      *httptest.Server
	cfg     config.Config
	auth    *auth.Service
	store   *sqlite.SQLiteStore
	manager *core.Manager
	hub     *Hub
}

// newTestEnv starts the full HTTP stack over an in-memory store.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.UploadDir = t.TempDir()
	cfg.AuthRatePerSecond = 1000
	cfg.AuthRateBurst = 1000
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
	hub := NewHub(cfg.SendBuffer, &logger)
	manager := core.NewManager(st, hub, core.WithLogger(&logger))

	srv := NewServer(cfg, Deps{Auth: authService, Store: st, Manager: manager, Hub: hub}, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(srv.Stop)
	t.Cleanup(ts.Close)
	t.Cleanup(hub.CloseAll)

	return &testEnv{ts: ts, cfg: cfg, auth: authService, store: st, manager: manager, hub: hub}
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	resp, body := e.postJSON(t, "/api/register", map[string]string{"username": username, "password": "password123"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, body)
	}
	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if _, err := e.auth.EnsureAdmin(ctx, "root", "rootpass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	token, err := e.auth.Login(ctx, "root", "rootpass")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return token
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (e *testEnv) wsURL(token string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// dial connects with token and waits for the session's own join announcement.
func (e *testEnv) dial(t *testing.T, ctx context.Context, token, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })

	readUntil(t, ctx, conn, func(f frame) bool {
		return f.Event == proto.EventStatus && f.notice() == username+" joined the chat"
	})
	return conn
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (f frame) notice() string {
	var n proto.EventNotice
	_ = json.Unmarshal(f.Data, &n)
	return n.Message
}

func (f frame) message() proto.EventChatMessage {
	var m proto.EventChatMessage
	_ = json.Unmarshal(f.Data, &m)
	return m
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func sendText(t *testing.T, ctx context.Context, conn *websocket.Conn, text string) {
	t.Helper()
	data, _ := json.Marshal(proto.MessageData{Text: text})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMessage, Data: data}); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
