package core

import (
	"cmp"
	"slices"
	"sync"
)

// Registry tracks live sessions by connection id. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Add inserts or replaces the session for s.ConnID. Returns true if newly added.
func (r *Registry) Add(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.sessions[s.ConnID]
	r.sessions[s.ConnID] = s
	return !exists
}

// Remove deletes the session for connID. Only the caller that actually removed
// the entry gets ok=true, so duplicate disconnects are harmless.
func (r *Registry) Remove(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	return s, ok
}

// Get returns the session for connID.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	return s, ok
}

// FindByUsername returns every live connection id of username.
func (r *Registry) FindByUsername(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, s := range r.sessions {
		if s.Username == username {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns the current membership, one entry per session, sorted by username.
func (r *Registry) Snapshot() []Member {
	r.mu.RLock()
	members := make([]Member, 0, len(r.sessions))
	for _, s := range r.sessions {
		members = append(members, Member{Username: s.Username, IsAdmin: s.IsAdmin})
	}
	r.mu.RUnlock()

	slices.SortStableFunc(members, func(a, b Member) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return members
}

// ConnIDs returns the connection ids of every joined session.
func (r *Registry) ConnIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
