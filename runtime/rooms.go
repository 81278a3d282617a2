package runtime

import (
	"context"
	"log/slog"
	"sync"

	"duplex/contract"
	"duplex/domain"
	"duplex/domain/event"
	"duplex/observability"
)

// RoomManager maps a conversation to the set of connections currently
// viewing it. Membership is explicit (join/leave) and independent of
// registry liveness; the registry only resolves connection ids to sinks.
//
// The membership mapping is transient and derived; it has no persistence.
type RoomManager struct {
	mu      sync.RWMutex
	log     *slog.Logger
	members map[domain.ConversationID]connSet
	sinks   contract.SinkResolver
	stats   *observability.Stats
}

func NewRoomManager(log *slog.Logger, sinks contract.SinkResolver, stats *observability.Stats) *RoomManager {
	return &RoomManager{
		log:     log,
		members: make(map[domain.ConversationID]connSet),
		sinks:   sinks,
		stats:   stats,
	}
}

func (rm *RoomManager) Join(id domain.ConversationID, conn domain.ConnectionID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.members[id]; !ok {
		rm.members[id] = make(connSet)
	}
	rm.members[id][conn] = struct{}{}
}

func (rm *RoomManager) Leave(id domain.ConversationID, conn domain.ConnectionID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if set, ok := rm.members[id]; ok {
		delete(set, conn)
		// No empty sets left behind, so the map doesn't grow forever
		if len(set) == 0 {
			delete(rm.members, id)
		}
	}
}

// DropConnection removes conn from every room it belongs to. Called on
// unregister so no orphaned membership survives a disconnect.
func (rm *RoomManager) DropConnection(conn domain.ConnectionID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, set := range rm.members {
		delete(set, conn)
		if len(set) == 0 {
			delete(rm.members, id)
		}
	}
}

func (rm *RoomManager) MembersOf(id domain.ConversationID) []domain.ConnectionID {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	conns := make([]domain.ConnectionID, 0, len(rm.members[id]))
	for conn := range rm.members[id] {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast delivers ev to every connection joined to the conversation.
// Delivery to one member is best-effort: a transport failure is logged and
// dropped, and never blocks the remaining members or the caller.
func (rm *RoomManager) Broadcast(ctx context.Context, id domain.ConversationID, ev event.ServerEvent) {
	rm.broadcast(ctx, id, ev, "")
}

// BroadcastExcept is Broadcast minus the originating connection, so a
// sender doesn't locally echo its own typing indicator.
func (rm *RoomManager) BroadcastExcept(ctx context.Context, id domain.ConversationID,
	ev event.ServerEvent, exclude domain.ConnectionID) {
	rm.broadcast(ctx, id, ev, exclude)
}

func (rm *RoomManager) broadcast(ctx context.Context, id domain.ConversationID,
	ev event.ServerEvent, exclude domain.ConnectionID) {
	// Collect targets under the read lock, deliver outside of it:
	// a stalled sink must not hold up joins and leaves.
	rm.mu.RLock()
	targets := make([]contract.EventSink, 0, len(rm.members[id]))
	for conn := range rm.members[id] {
		if conn == exclude {
			continue
		}
		if sink, ok := rm.sinks.SinkFor(conn); ok {
			targets = append(targets, sink)
		}
	}
	rm.mu.RUnlock()

	for _, sink := range targets {
		if err := sink.Consume(ctx, ev); err != nil {
			rm.stats.IncrDropped()
			rm.log.Debug("Dropped event for one room member",
				"conversation_id", id, "event", ev.Name(), "error", err)
			continue
		}
		rm.stats.IncrBroadcast()
	}
}
