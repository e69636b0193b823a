package http

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/proto"
)

// conn is the transport-side state of one WebSocket.
type conn struct {
	send   chan proto.Outbound
	kick   chan struct{}
	cancel context.CancelFunc
	kicked bool
}

// Hub owns the outbound queues of live WebSocket connections and
// implements core.Transport.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	buffer int
	log    *zerolog.Logger
}

var _ core.Transport = (*Hub)(nil)

// NewHub creates a hub whose per-connection queues hold buffer frames.
func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		conns:  make(map[string]*conn),
		buffer: buffer,
		log:    logger,
	}
}

// register adds connID and returns its outbound queue and a channel closed
// when the connection must be terminated. cancel must stop the connection's
// read and write loops.
func (h *Hub) register(connID string, cancel context.CancelFunc) (send <-chan proto.Outbound, kick <-chan struct{}) {
	c := &conn{
		send:   make(chan proto.Outbound, h.buffer),
		kick:   make(chan struct{}),
		cancel: cancel,
	}

	h.mu.Lock()
	h.conns[connID] = c
	h.mu.Unlock()

	return c.send, c.kick
}

// unregister forgets connID and reports whether it was closed through Close.
func (h *Hub) unregister(connID string) (kicked bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	delete(h.conns, connID)
	return c.kicked
}

// Send implements core.Transport.
func (h *Hub) Send(connID string, ev *core.Event) bool {
	return h.push(connID, outboundFromEvent(ev))
}

// push queues out for connID without blocking.
func (h *Hub) push(connID string, out proto.Outbound) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	select {
	case c.send <- out:
		return true
	default:
		return false
	}
}

// Close implements core.Transport. The connection's write loop performs the
// close handshake and the handler reports the disconnect to the manager.
func (h *Hub) Close(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok || c.kicked {
		return
	}
	c.kicked = true
	close(c.kick)
	h.log.Info().Str("conn_id", connID).Msg("closing connection")
}

// CloseAll cancels every live connection. Used on shutdown because hijacked
// connections are not tracked by http.Server.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(h.conns))
	for _, c := range h.conns {
		cancels = append(cancels, c.cancel)
	}
	h.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
