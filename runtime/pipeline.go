package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"duplex/contract"
	"duplex/domain"
	"duplex/domain/event"
	"duplex/errors"
	"duplex/moderation"
	"duplex/observability"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
)

// SendCommand is one inbound send-message intent, already bound to the
// authenticated sender and its originating connection.
type SendCommand struct {
	ConversationID domain.ConversationID `validate:"required"`
	SenderID       string                `validate:"required"`
	From           domain.ConnectionID
	Content        string             `validate:"required,max=1000"`
	Type           domain.MessageType `validate:"omitempty,oneof=text image file system"`
	FileURL        string
	FileName       string
	FileSize       int64
}

// IngestionPipeline runs one send request end to end:
// authorize -> validate -> moderate -> persist -> fan-out -> delivery marking.
//
// Fan-out only happens after a successful persist, and delivery marking runs
// as a background task whose failures are logged, never surfaced: receipt
// bookkeeping is not required for message visibility.
type IngestionPipeline struct {
	log       *slog.Logger
	store     contract.Persistence
	rooms     *RoomManager
	registry  *ConnectionRegistry
	receipts  *ReceiptEngine
	index     contract.MessageIndexer
	moderator *moderation.Moderator
	validate  *validator.Validate
	stats     *observability.Stats
	clock     func() time.Time
	tasks     sync.WaitGroup
}

func NewIngestionPipeline(log *slog.Logger, store contract.Persistence,
	rooms *RoomManager, registry *ConnectionRegistry, receipts *ReceiptEngine,
	index contract.MessageIndexer, moderator *moderation.Moderator,
	stats *observability.Stats) *IngestionPipeline {
	return &IngestionPipeline{
		log:       log,
		store:     store,
		rooms:     rooms,
		registry:  registry,
		receipts:  receipts,
		index:     index,
		moderator: moderator,
		validate:  validator.New(),
		stats:     stats,
		clock:     time.Now,
	}
}

// Ingest processes one send request. On any error before fan-out the
// message is dropped with no side effects; the caller reports the failure
// to the sender only. There is no automatic retry: resubmission is the
// client's responsibility.
func (p *IngestionPipeline) Ingest(ctx context.Context, cmd SendCommand) (domain.Message, error) {
	// 1. Authorize: the sender must be a participant.
	conv, err := p.store.FindConversation(ctx, cmd.ConversationID)
	if err != nil {
		p.stats.IncrRejected()
		return domain.Message{}, err
	}
	if !conv.HasParticipant(cmd.SenderID) {
		p.stats.IncrRejected()
		return domain.Message{}, errors.ErrNotAMember
	}

	// 2. Validate and moderate the payload.
	if err := p.validate.Struct(cmd); err != nil {
		p.stats.IncrRejected()
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	content := p.censor(cmd)

	var attachment *domain.Attachment
	if cmd.FileURL != "" {
		attachment = &domain.Attachment{URL: cmd.FileURL, Name: cmd.FileName, Size: cmd.FileSize}
	}

	msg, err := domain.NewMessage(cmd.ConversationID, cmd.SenderID, content, cmd.Type, attachment, p.clock())
	if err != nil {
		p.stats.IncrRejected()
		return domain.Message{}, err
	}

	// 3. Persist. No fan-out may happen before this succeeds.
	if err := p.store.CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("persist message: %w", err)
	}
	if err := p.store.TouchConversationActivity(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		// The message is durable; a stale lastActivity is tolerable
		p.log.Warn("Failed to bump conversation activity", "conversation_id", conv.ID, "error", err)
	}
	p.stats.IncrIngested()

	// 4. Fan-out to every joined connection, the sender's own included, so
	// multi-tab senders see their message echoed consistently.
	p.rooms.Broadcast(ctx, conv.ID, event.NewMessage{Message: msg})

	if p.index != nil {
		if err := p.index.Index(msg); err != nil {
			p.log.Warn("Failed to index message", "message_id", msg.ID, "error", err)
		}
	}

	// 5. Delivery marking for online participants, fire-and-forget relative
	// to the caller. Per-participant order is irrelevant: correctness
	// depends only on the idempotent per-message set.
	recipients := conv.OtherParticipants(cmd.SenderID)
	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("Delivery marking panicked", "message_id", msg.ID, "panic", r)
			}
		}()
		for _, participantID := range recipients {
			if !p.registry.IsOnline(participantID) {
				continue
			}
			if err := p.receipts.MarkDelivered(context.WithoutCancel(ctx), msg.ID, participantID); err != nil {
				p.log.Warn("Failed to mark message delivered",
					"message_id", msg.ID, "user_id", participantID, "error", err)
			}
		}
	}()

	return msg, nil
}

// Drain waits for in-flight background tasks. Used on shutdown and by tests
// that assert on delivery side effects.
func (p *IngestionPipeline) Drain() {
	p.tasks.Wait()
}

func (p *IngestionPipeline) censor(cmd SendCommand) string {
	if p.moderator == nil {
		return cmd.Content
	}
	censored, found := p.moderator.Censor(cmd.Content)
	if len(found) > 0 {
		info := whatlanggo.Detect(cmd.Content)
		p.log.Info("Censored message content",
			"conversation_id", cmd.ConversationID,
			"sender_id", cmd.SenderID,
			"words", len(found),
			"lang", info.Lang.Iso6391())
	}
	return censored
}
