// Package runtime is the live synchronization engine: it tracks connections,
// fans out events to conversation rooms, and keeps per-message receipt state
// consistent. It orchestrates the system without containing storage or
// transport logic.
package runtime

import (
	"sync"
	"time"

	"duplex/contract"
	"duplex/domain"
)

type connSet map[domain.ConnectionID]struct{}

type liveConnection struct {
	userID string
	sink   contract.EventSink
}

// Registration is the outcome of registering one connection.
type Registration struct {
	BecameOnline bool
}

// ConnectionRegistry is the source of truth for "is this user reachable
// right now". A user may hold several simultaneous connections (two tabs);
// presence is the logical OR across them.
//
// State is live-only: it is fully lost and rebuilt as connections arrive
// after a process restart.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	conns    map[domain.ConnectionID]liveConnection
	byUser   map[string]connSet
	lastSeen map[string]time.Time
	clock    func() time.Time
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:    make(map[domain.ConnectionID]liveConnection),
		byUser:   make(map[string]connSet),
		lastSeen: make(map[string]time.Time),
		clock:    time.Now,
	}
}

// Register records a connection as live for userID.
// BecameOnline is true only for the user's first live connection, which is
// what keeps presence broadcasts idempotent under multi-tab connects.
func (r *ConnectionRegistry) Register(userID string, id domain.ConnectionID, sink contract.EventSink) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[id] = liveConnection{userID: userID, sink: sink}

	set, existed := r.byUser[userID]
	if !existed {
		set = make(connSet)
		r.byUser[userID] = set
	}
	first := len(set) == 0
	set[id] = struct{}{}

	return Registration{BecameOnline: first}
}

// Unregister removes a connection. When it was the user's last one, the
// user transitions offline and lastSeen is stamped.
// Unknown connection ids are a no-op, so duplicate teardowns stay harmless.
func (r *ConnectionRegistry) Unregister(id domain.ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)

	set := r.byUser[conn.userID]
	delete(set, id)
	if len(set) > 0 {
		return conn.userID, false
	}

	delete(r.byUser, conn.userID)
	r.lastSeen[conn.userID] = r.clock()
	return conn.userID, true
}

func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *ConnectionRegistry) ConnectionsFor(userID string) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.ConnectionID, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	return ids
}

// UserOf resolves the owner of a live connection.
func (r *ConnectionRegistry) UserOf(id domain.ConnectionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn.userID, ok
}

// SinkFor implements contract.SinkResolver for the room manager.
func (r *ConnectionRegistry) SinkFor(id domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// SinksExcept returns every live sink not owned by userID.
// Used for global presence broadcasts, which go to everyone but the subject.
func (r *ConnectionRegistry) SinksExcept(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, conn := range r.conns {
		if conn.userID != userID {
			sinks = append(sinks, conn.sink)
		}
	}
	return sinks
}

// Presence returns the live presence view for one user.
func (r *ConnectionRegistry) Presence(userID string) domain.UserPresence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.ConnectionID, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	return domain.UserPresence{
		UserID:        userID,
		Online:        len(ids) > 0,
		LastSeen:      r.lastSeen[userID],
		ConnectionIDs: ids,
	}
}
