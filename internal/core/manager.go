package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/metrics"
	"github.com/vovakirdan/wirechat-room/internal/store"
)

// DefaultMaxMessageRunes bounds the length of a single chat message.
const DefaultMaxMessageRunes = 2000

// ModerationStore is the persistence the core consults on every event.
// The core never caches mute or ban decisions.
type ModerationStore interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	SetUserStatus(ctx context.Context, id int64, status store.UserStatus) error
	MuteUser(ctx context.Context, userID, adminID int64, d time.Duration, reason string) (*store.Mute, error)
	UnmuteUser(ctx context.Context, userID int64) error
	IsMuted(ctx context.Context, userID int64) (bool, error)
	ActiveMute(ctx context.Context, userID int64) (*store.Mute, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Manager tracks sessions, gates inbound messages and fans out events
// for the single shared room.
type Manager struct {
	registry *Registry
	router   *Router
	commands *Interpreter
	store    ModerationStore
	clock    clock.Clock
	log      *zerolog.Logger
	maxRunes int
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock sets the time source for message timestamps and mute countdowns.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMaxMessageRunes overrides DefaultMaxMessageRunes. Non-positive disables the limit.
func WithMaxMessageRunes(n int) Option {
	return func(m *Manager) {
		m.maxRunes = n
	}
}

// NewManager wires a registry, router and interpreter around st and tr.
func NewManager(st ModerationStore, tr Transport, opts ...Option) *Manager {
	nop := zerolog.Nop()
	m := &Manager{
		registry: NewRegistry(),
		store:    st,
		clock:    clock.New(),
		log:      &nop,
		maxRunes: DefaultMaxMessageRunes,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.router = NewRouter(m.registry, tr, m.log)
	m.commands = NewInterpreter(st, m.registry)
	return m
}

// Online returns the current membership snapshot.
func (m *Manager) Online() []Member {
	return m.registry.Snapshot()
}

// Connect joins an authenticated connection to the room.
// The session is registered before the account status is re-read, so a /ban
// racing with the handshake either finds the session or is seen here.
// A banned account gets ErrBanned and is never announced.
func (m *Manager) Connect(ctx context.Context, connID string, id Identity) error {
	if !m.registry.Add(NewSession(connID, id)) {
		m.log.Warn().Str("conn_id", connID).Str("username", id.Username).Msg("connection registered twice")
		return nil
	}

	user, err := m.store.GetUserByID(ctx, id.UserID)
	switch {
	case err != nil:
		m.registry.Remove(connID)
		return storeError("failed to load user", err)
	case user.Banned():
		m.registry.Remove(connID)
		m.log.Info().Str("conn_id", connID).Str("username", id.Username).Msg("banned user refused at join")
		return ErrBanned
	}

	metrics.Sessions.Inc()
	m.log.Info().Str("conn_id", connID).Str("username", id.Username).Bool("is_admin", id.IsAdmin).Msg("session joined")

	m.router.Room(statusEvent(fmt.Sprintf("%s joined the chat", id.Username)))
	m.broadcastUserList()
	return nil
}

// Disconnect removes connID from the room. Unknown or already removed ids are ignored.
func (m *Manager) Disconnect(_ context.Context, connID string) {
	s, ok := m.registry.Remove(connID)
	if !ok {
		return
	}
	metrics.Sessions.Dec()
	m.log.Info().Str("conn_id", connID).Str("username", s.Username).Msg("session left")

	m.router.Room(statusEvent(fmt.Sprintf("%s left the chat", s.Username)))
	m.broadcastUserList()
}

func (m *Manager) broadcastUserList() {
	m.router.Room(userListEvent(m.registry.Snapshot()))
}

// HandleMessage runs one inbound text line through the gate:
// admin commands first, then the mute check, the length limit, persistence and broadcast.
func (m *Manager) HandleMessage(ctx context.Context, connID, text string) {
	s, ok := m.registry.Get(connID)
	if !ok {
		m.log.Debug().Str("conn_id", connID).Msg("message from unregistered connection dropped")
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if s.IsAdmin && strings.HasPrefix(text, CommandPrefix) {
		m.dispatch(ctx, s, text)
		return
	}

	if muted, err := m.checkMute(ctx, s); err != nil {
		m.fail(s, err)
		return
	} else if muted {
		metrics.MessagesRejected.Inc()
		return
	}

	if m.maxRunes > 0 && utf8.RuneCountInString(text) > m.maxRunes {
		m.fail(s, coreErrorf(ErrCodeBadRequest, "message too long: at most %d characters", m.maxRunes))
		return
	}

	msg := &store.Message{
		UserID:    s.UserID,
		Username:  s.Username,
		Text:      text,
		IsAdmin:   s.IsAdmin,
		CreatedAt: m.clock.Now().UTC(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		m.fail(s, &CoreError{Code: ErrCodeSendFailed, Message: "message failed to send", Err: err})
		return
	}

	metrics.Messages.Inc()
	m.router.Room(messageEvent(Message{
		ID:        msg.ID,
		Username:  msg.Username,
		Text:      msg.Text,
		IsAdmin:   msg.IsAdmin,
		CreatedAt: msg.CreatedAt,
	}))
}

// checkMute reports whether s may not speak, notifying the session when muted.
func (m *Manager) checkMute(ctx context.Context, s Session) (bool, *CoreError) {
	muted, err := m.store.IsMuted(ctx, s.UserID)
	if err != nil {
		return false, storeError("failed to check mute status", err)
	}
	if !muted {
		return false, nil
	}

	mute, err := m.store.ActiveMute(ctx, s.UserID)
	if err != nil {
		return false, storeError("failed to check mute status", err)
	}

	msg := "you are muted"
	if mute != nil {
		msg = fmt.Sprintf("you are muted, %d minutes remaining", remainingMinutes(mute.MutedUntil.Sub(m.clock.Now())))
		if mute.Reason != "" {
			msg += ", reason: " + mute.Reason
		}
	}
	m.router.Private(s.ConnID, errorEvent(coreError(ErrCodeMuted, msg)))
	return true, nil
}

// remainingMinutes rounds up so a live mute never reports zero minutes.
func remainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

func (m *Manager) dispatch(ctx context.Context, s Session, text string) {
	cmd, _ := ParseCommand(text)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("command", cmd.Name).Str("username", s.Username).Msg("command panicked")
			m.fail(s, coreError(ErrCodeInternal, "command failed"))
		}
	}()

	out, err := m.commands.Execute(ctx, s, cmd)
	if err != nil {
		m.fail(s, asCoreError(err))
		return
	}
	m.log.Info().Str("command", cmd.Name).Strs("args", cmd.Args).Str("username", s.Username).Msg("admin command executed")

	if out.Status != "" {
		m.router.Room(statusEvent(out.Status))
	}
	if out.Reply != "" {
		m.router.Private(s.ConnID, systemEvent(out.Reply))
	}
	if out.Disconnect != "" {
		m.router.Disconnect(m.registry.FindByUsername(out.Disconnect)...)
	}
}

// fail delivers err privately to s and logs causes that are not the user's fault.
func (m *Manager) fail(s Session, err *CoreError) {
	if err.Err != nil {
		m.log.Error().Err(err.Err).Str("code", err.Code).Str("username", s.Username).Msg(err.Message)
	}
	m.router.Private(s.ConnID, errorEvent(err))
}

// BroadcastFile announces an uploaded attachment to the room as a message event.
// The upload path has already persisted the file record.
func (m *Manager) BroadcastFile(_ context.Context, username string, isAdmin bool, file FileAttachment) Message {
	msg := Message{
		Username:  username,
		IsAdmin:   isAdmin,
		CreatedAt: m.clock.Now().UTC(),
		File:      &file,
	}
	metrics.Messages.Inc()
	m.router.Room(messageEvent(msg))
	return msg
}
