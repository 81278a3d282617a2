package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"duplex/domain"
	"duplex/domain/event"
	"duplex/observability"
	"duplex/repositories"
	"duplex/runtime/workers"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// captureSink records everything the engine pushes at one connection.
type captureSink struct {
	mu     sync.Mutex
	events []event.ServerEvent
	fail   bool
}

func (c *captureSink) Consume(_ context.Context, e event.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("sink unavailable")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) Events() []event.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.ServerEvent(nil), c.events...)
}

// Named returns the captured events carrying the given wire name.
func (c *captureSink) Named(name string) []event.ServerEvent {
	var out []event.ServerEvent
	for _, e := range c.Events() {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

type engineFixture struct {
	store        *repositories.Store
	stats        *observability.Stats
	registry     *ConnectionRegistry
	rooms        *RoomManager
	presence     *PresenceCoordinator
	typing       *TypingCoordinator
	receipts     *ReceiptEngine
	pipeline     *IngestionPipeline
	orchestrator *Orchestrator
}

func newEngine(t *testing.T) *engineFixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelError)
	stats := observability.NewStats()
	store := repositories.NewStore(db, log, nil)

	registry := NewConnectionRegistry()
	rooms := NewRoomManager(log, registry, stats)
	presence := NewPresenceCoordinator(log, registry)
	typing := NewTypingCoordinator(log, rooms, stats, 5*time.Second)
	receipts := NewReceiptEngine(log, store, rooms, stats)
	pipeline := NewIngestionPipeline(log, store, rooms, registry, receipts, nil, nil, stats)
	sup := workers.NewSupervisor(log, 50*time.Millisecond)
	orchestrator := NewOrchestrator(log, sup, registry, rooms,
		presence, typing, receipts, pipeline, store, stats)

	return &engineFixture{
		store:        store,
		stats:        stats,
		registry:     registry,
		rooms:        rooms,
		presence:     presence,
		typing:       typing,
		receipts:     receipts,
		pipeline:     pipeline,
		orchestrator: orchestrator,
	}
}

func (f *engineFixture) seedConversation(t *testing.T, id domain.ConversationID, userA, userB string) {
	t.Helper()
	conv, err := domain.NewPrivateConversation(id, userA, userB, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.store.CreateConversation(context.Background(), conv))
}

// connect registers a connection for userID and returns its sink.
func (f *engineFixture) connect(ctx context.Context, userID string, id domain.ConnectionID) *captureSink {
	s := &captureSink{}
	f.orchestrator.Connect(ctx, userID, id, s)
	return s
}
