package core

import "github.com/rs/zerolog"

// Transport is the connection layer the core delivers events through.
type Transport interface {
	// Send queues ev for connID without blocking. Returns false if dropped.
	Send(connID string, ev *Event) bool
	// Close terminates connID. The transport reports the disconnect back
	// through Manager.Disconnect once the connection is gone.
	Close(connID string)
}

// Router delivers events to the whole room or to a single session.
// The room is exactly the set of sessions in the registry.
type Router struct {
	registry  *Registry
	transport Transport
	log       *zerolog.Logger
}

// NewRouter creates a router over registry and transport.
func NewRouter(registry *Registry, transport Transport, logger *zerolog.Logger) *Router {
	return &Router{registry: registry, transport: transport, log: logger}
}

// Room sends ev to every joined session and returns how many accepted it.
func (r *Router) Room(ev *Event) int {
	delivered := 0
	for _, id := range r.registry.ConnIDs() {
		if r.transport.Send(id, ev) {
			delivered++
			continue
		}
		// Drop if slow consumer.
		r.log.Warn().Str("conn_id", id).Stringer("event", ev.Kind).Msg("room event dropped")
	}
	return delivered
}

// Private sends ev to connID only.
func (r *Router) Private(connID string, ev *Event) bool {
	if ok := r.transport.Send(connID, ev); !ok {
		r.log.Warn().Str("conn_id", connID).Stringer("event", ev.Kind).Msg("private event dropped")
		return false
	}
	return true
}

// Disconnect force-closes every given connection.
func (r *Router) Disconnect(connIDs ...string) {
	for _, id := range connIDs {
		r.transport.Close(id)
	}
}
