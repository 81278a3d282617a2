package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duplex/contract"
	"duplex/domain"
	"duplex/domain/event"
	"duplex/observability"

	"github.com/google/uuid"
)

// ReceiptEngine drives the per-message delivered/read state machine.
// Both sets are monotonic and idempotent; the persistence layer reports
// whether an append actually happened, which is what gates the single
// message-read broadcast.
type ReceiptEngine struct {
	log   *slog.Logger
	store contract.Persistence
	rooms *RoomManager
	stats *observability.Stats
	clock func() time.Time
}

func NewReceiptEngine(log *slog.Logger, store contract.Persistence,
	rooms *RoomManager, stats *observability.Stats) *ReceiptEngine {
	return &ReceiptEngine{log: log, store: store, rooms: rooms, stats: stats, clock: time.Now}
}

// MarkDelivered appends (userID, now) to the message's deliveredTo set.
// No broadcast: recipients infer delivery locally from new-message; this is
// bookkeeping for read-receipt correctness and any future "seen by" UI.
func (e *ReceiptEngine) MarkDelivered(ctx context.Context, messageID uuid.UUID, userID string) error {
	appended, err := e.store.AppendDelivered(ctx, messageID, userID, e.clock())
	if err != nil {
		return fmt.Errorf("append delivered receipt: %w", err)
	}
	if appended {
		e.stats.IncrDelivered()
	}
	return nil
}

// MarkRead appends (userID, now) to the message's readBy set and, on the
// first read only, broadcasts message-read to the conversation room so the
// sender can update its receipt indicator.
//
// A read does not require a prior delivered record.
func (e *ReceiptEngine) MarkRead(ctx context.Context, messageID uuid.UUID, userID string) error {
	readAt := e.clock()
	appended, err := e.store.AppendRead(ctx, messageID, userID, readAt)
	if err != nil {
		return fmt.Errorf("append read receipt: %w", err)
	}
	if !appended {
		return nil
	}
	e.stats.IncrRead()

	msg, err := e.store.FindMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message for read broadcast: %w", err)
	}
	e.rooms.Broadcast(ctx, msg.ConversationID, event.MessageRead{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		ReadAt:         readAt,
	})
	return nil
}

// MarkAllRead is the bulk catch-up applied when a user opens a
// conversation. Same per-message idempotency rule, but no per-message
// broadcasts: emitting the whole backlog would be a broadcast storm.
func (e *ReceiptEngine) MarkAllRead(ctx context.Context, id domain.ConversationID, userID string) (int, error) {
	count, err := e.store.MarkAllRead(ctx, id, userID, e.clock())
	if err != nil {
		return 0, fmt.Errorf("bulk read catch-up: %w", err)
	}
	if count > 0 {
		e.log.Debug("Caught up read receipts", "conversation_id", id, "user_id", userID, "count", count)
	}
	return count, nil
}
