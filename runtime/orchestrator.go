package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"duplex/contract"
	"duplex/domain"
	"duplex/domain/event"
	"duplex/errors"
	"duplex/observability"

	"github.com/google/uuid"
)

// Orchestrator is the single entry point the transport talks to. It owns
// the lifecycle of every core component and dispatches the closed inbound
// event set exhaustively.
//
// Components are accessed only through their public operations; there is no
// ambient shared state reachable from handlers.
type Orchestrator struct {
	log        *slog.Logger
	registry   *ConnectionRegistry
	rooms      *RoomManager
	presence   *PresenceCoordinator
	typing     *TypingCoordinator
	receipts   *ReceiptEngine
	pipeline   *IngestionPipeline
	store      contract.Persistence
	stats      *observability.Stats
	supervisor contract.ISupervisor
	tasks      sync.WaitGroup
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *ConnectionRegistry, rooms *RoomManager, presence *PresenceCoordinator,
	typing *TypingCoordinator, receipts *ReceiptEngine, pipeline *IngestionPipeline,
	store contract.Persistence, stats *observability.Stats) *Orchestrator {
	return &Orchestrator{
		log:        log,
		registry:   registry,
		rooms:      rooms,
		presence:   presence,
		typing:     typing,
		receipts:   receipts,
		pipeline:   pipeline,
		store:      store,
		stats:      stats,
		supervisor: supervisor,
	}
}

// Connect registers an authenticated connection. The user-online broadcast
// fires only on the first live connection; a second tab is silent.
func (o *Orchestrator) Connect(ctx context.Context, userID string, id domain.ConnectionID, sink contract.EventSink) {
	reg := o.registry.Register(userID, id, sink)
	o.stats.ConnOpened()
	o.log.Info("Connection registered", "user_id", userID, "connection_id", id)

	if reg.BecameOnline {
		o.presence.UserOnline(ctx, userID)
	}
}

// Disconnect reverses everything Connect and subsequent joins set up.
// Partial cleanup is a correctness bug (ghost presence, ghost typing
// indicators), so the teardown order is fixed: room membership first, then
// registration, then the offline reactions.
func (o *Orchestrator) Disconnect(ctx context.Context, id domain.ConnectionID) {
	o.rooms.DropConnection(id)

	userID, becameOffline := o.registry.Unregister(id)
	if userID == "" {
		return
	}
	o.stats.ConnClosed()
	o.log.Info("Connection unregistered", "user_id", userID, "connection_id", id)

	if becameOffline {
		o.typing.StopAll(ctx, userID)
		o.presence.UserOffline(ctx, userID, o.registry.Presence(userID).LastSeen)
	}
}

// HandleEvent dispatches one inbound event from a live connection.
// A returned error is reported to that sender only, as an `error` event.
func (o *Orchestrator) HandleEvent(ctx context.Context, id domain.ConnectionID, ev event.ClientEvent) error {
	userID, ok := o.registry.UserOf(id)
	if !ok {
		return errors.ErrAuthFailure
	}

	switch e := ev.(type) {
	case event.JoinConversation:
		return o.join(ctx, e.ConversationID, userID, id)

	case event.LeaveConversation:
		o.rooms.Leave(e.ConversationID, id)
		return nil

	case event.SendMessage:
		_, err := o.pipeline.Ingest(ctx, SendCommand{
			ConversationID: e.ConversationID,
			SenderID:       userID,
			From:           id,
			Content:        e.Content,
			Type:           e.Type,
			FileURL:        e.FileURL,
			FileName:       e.FileName,
			FileSize:       e.FileSize,
		})
		return err

	case event.TypingStart:
		o.typing.Start(ctx, e.ConversationID, userID, id)
		return nil

	case event.TypingStop:
		o.typing.Stop(ctx, e.ConversationID, userID, id)
		return nil

	case event.MarkRead:
		messageID, err := uuid.Parse(e.MessageID)
		if err != nil {
			return fmt.Errorf("%w: bad message id", errors.ErrInvalidPayload)
		}
		return o.receipts.MarkRead(ctx, messageID, userID)

	default:
		return errors.ErrUnknownEvent
	}
}

// join verifies membership, subscribes the connection to the room, and
// schedules the read catch-up for the opened conversation in the
// background. The catch-up emits no broadcasts.
func (o *Orchestrator) join(ctx context.Context, conversationID domain.ConversationID,
	userID string, id domain.ConnectionID) error {
	member, err := o.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		o.stats.IncrRejected()
		return errors.ErrNotAMember
	}

	o.rooms.Join(conversationID, id)

	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("Read catch-up panicked", "conversation_id", conversationID, "panic", r)
			}
		}()
		if _, err := o.receipts.MarkAllRead(context.WithoutCancel(ctx), conversationID, userID); err != nil {
			o.log.Warn("Read catch-up failed",
				"conversation_id", conversationID, "user_id", userID, "error", err)
		}
	}()
	return nil
}

// Start launches the supervised background workers (typing sweep, health
// monitoring). It returns immediately; Stop tears the workers down.
func (o *Orchestrator) Start(ctx context.Context, workers ...contract.Worker) {
	o.supervisor.Add(workers...)
	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
}

// Stop initiates a graceful shutdown: workers are cancelled, then in-flight
// background tasks (delivery marking, read catch-ups) are drained.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	o.pipeline.Drain()
	o.tasks.Wait()
}

// Drain waits for background tasks without shutting down. Test hook.
func (o *Orchestrator) Drain() {
	o.pipeline.Drain()
	o.tasks.Wait()
}
