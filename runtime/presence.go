package runtime

import (
	"context"
	"log/slog"
	"time"

	"duplex/domain/event"
)

// PresenceCoordinator reacts to registry transitions. It holds no state of
// its own: idempotency comes entirely from the registry only reporting
// becameOnline/becameOffline on the first and last connection.
//
// Presence broadcasts are global, not room-scoped, since any user may want
// to know who is online.
type PresenceCoordinator struct {
	log      *slog.Logger
	registry *ConnectionRegistry
}

func NewPresenceCoordinator(log *slog.Logger, registry *ConnectionRegistry) *PresenceCoordinator {
	return &PresenceCoordinator{log: log, registry: registry}
}

func (p *PresenceCoordinator) UserOnline(ctx context.Context, userID string) {
	p.emit(ctx, userID, event.UserOnline{UserID: userID})
}

func (p *PresenceCoordinator) UserOffline(ctx context.Context, userID string, lastSeen time.Time) {
	p.emit(ctx, userID, event.UserOffline{UserID: userID, LastSeen: lastSeen})
}

func (p *PresenceCoordinator) emit(ctx context.Context, userID string, ev event.ServerEvent) {
	for _, sink := range p.registry.SinksExcept(userID) {
		if err := sink.Consume(ctx, ev); err != nil {
			// Presence bookkeeping failures are non-fatal
			p.log.Debug("Dropped presence event", "user_id", userID, "event", ev.Name(), "error", err)
		}
	}
}
