// Package client is a small chat client used by the command-line tools.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-room/internal/proto"
)

// ErrUserExists is returned by Register when the username is taken.
var ErrUserExists = errors.New("user already exists")

// Client talks to a chat server over REST and WebSocket.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
}

// Login returns a session token for username.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	return c.authenticate(ctx, "/api/login", map[string]string{"username": username, "password": password})
}

// Register creates username and returns a session token.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	return c.authenticate(ctx, "/api/register", map[string]string{"username": username, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode %s response: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusConflict:
		return "", ErrUserExists
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("%s: %s (%d)", path, out.Error, resp.StatusCode)
	}
	return out.Token, nil
}

// Dial opens the chat WebSocket with token.
func (c *Client) Dial(ctx context.Context, token string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": []string{token}}.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// Send writes one chat line.
func Send(ctx context.Context, conn *websocket.Conn, text string) error {
	data, err := json.Marshal(proto.MessageData{Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMessage, Data: data})
}

// Frame is a decoded server frame.
type Frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Read waits for the next server frame.
func Read(ctx context.Context, conn *websocket.Conn) (Frame, error) {
	var f Frame
	err := wsjson.Read(ctx, conn, &f)
	return f, err
}

// Format renders f as a single human-readable line.
func Format(f Frame) string {
	if f.Type == proto.OutboundTypeError && f.Error != nil {
		return fmt.Sprintf("! %s", f.Error.Msg)
	}
	switch f.Event {
	case proto.EventMessage:
		var m proto.EventChatMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return string(f.Data)
		}
		name := m.Username
		if m.IsAdmin {
			name += " (admin)"
		}
		if m.Type == proto.MessageTypeFile {
			return fmt.Sprintf("[%s] %s shared %s: %s", m.Timestamp, name, m.Filename, m.URL)
		}
		return fmt.Sprintf("[%s] %s: %s", m.Timestamp, name, m.Text)
	case proto.EventStatus, proto.EventSystem:
		var n proto.EventNotice
		if err := json.Unmarshal(f.Data, &n); err != nil {
			return string(f.Data)
		}
		return "* " + n.Message
	case proto.EventUserList:
		var l proto.EventUserListData
		if err := json.Unmarshal(f.Data, &l); err != nil {
			return string(f.Data)
		}
		names := make([]string, 0, len(l.Users))
		for _, u := range l.Users {
			names = append(names, u.Username)
		}
		return "* online: " + strings.Join(names, ", ")
	default:
		return fmt.Sprintf("event=%s data=%s", f.Event, f.Data)
	}
}
