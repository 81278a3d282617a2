package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"duplex/domain"
	"duplex/domain/event"
	"duplex/observability"
)

// DefaultTypingExpiry is the server-side safety expiry, independent of any
// client-side debounce. A client that starts typing and vanishes without an
// explicit stop is swept after this window.
const DefaultTypingExpiry = 5 * time.Second

type typingKey struct {
	conversation domain.ConversationID
	user         string
}

// TypingCoordinator owns the transient typing state machine per
// (conversation, user): idle -> typing on start, back to idle on explicit
// stop, disconnect, or expiry. Concurrent typists in the same conversation
// are independent entries.
type TypingCoordinator struct {
	mu      sync.Mutex
	log     *slog.Logger
	rooms   *RoomManager
	stats   *observability.Stats
	expiry  time.Duration
	entries map[typingKey]domain.TypingState
	clock   func() time.Time
}

func NewTypingCoordinator(log *slog.Logger, rooms *RoomManager,
	stats *observability.Stats, expiry time.Duration) *TypingCoordinator {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingCoordinator{
		log:     log,
		rooms:   rooms,
		stats:   stats,
		expiry:  expiry,
		entries: make(map[typingKey]domain.TypingState),
		clock:   time.Now,
	}
}

// Start creates or refreshes the typing entry and tells the rest of the
// room. Re-broadcasting a refresh mirrors the client signal one-to-one,
// which keeps the state machine trivial; at most one broadcast happens per
// distinct start signal.
func (t *TypingCoordinator) Start(ctx context.Context, id domain.ConversationID,
	userID string, from domain.ConnectionID) {
	key := typingKey{conversation: id, user: userID}

	t.mu.Lock()
	t.entries[key] = domain.TypingState{
		ConversationID: id,
		UserID:         userID,
		ExpiresAt:      t.clock().Add(t.expiry),
	}
	t.mu.Unlock()

	t.rooms.BroadcastExcept(ctx, id, event.UserTyping{UserID: userID, ConversationID: id}, from)
}

// Stop handles the explicit typing-stop signal. It only broadcasts when an
// entry actually existed, so a stray stop produces no event.
func (t *TypingCoordinator) Stop(ctx context.Context, id domain.ConversationID,
	userID string, from domain.ConnectionID) {
	key := typingKey{conversation: id, user: userID}

	t.mu.Lock()
	_, existed := t.entries[key]
	delete(t.entries, key)
	t.mu.Unlock()

	if existed {
		t.rooms.BroadcastExcept(ctx, id, event.UserStopTyping{UserID: userID, ConversationID: id}, from)
	}
}

// StopAll clears every typing entry for userID, broadcasting a stop to each
// affected room. Called when the user's last connection goes away.
func (t *TypingCoordinator) StopAll(ctx context.Context, userID string) {
	t.mu.Lock()
	var stopped []domain.ConversationID
	for key := range t.entries {
		if key.user == userID {
			stopped = append(stopped, key.conversation)
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()

	for _, id := range stopped {
		t.rooms.Broadcast(ctx, id, event.UserStopTyping{UserID: userID, ConversationID: id})
	}
}

// Sweep expires stale entries. Deleting under the lock before broadcasting
// guarantees exactly one user-stop-typing per stale entry, even when
// several sweeps observe it concurrently.
func (t *TypingCoordinator) Sweep(ctx context.Context) {
	now := t.clock()

	t.mu.Lock()
	var expired []domain.TypingState
	for key, state := range t.entries {
		if state.Expired(now) {
			expired = append(expired, state)
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()

	for _, state := range expired {
		t.stats.IncrTypingExpired()
		t.log.Debug("Typing entry expired without an explicit stop",
			"user_id", state.UserID, "conversation_id", state.ConversationID)
		t.rooms.Broadcast(ctx, state.ConversationID,
			event.UserStopTyping{UserID: state.UserID, ConversationID: state.ConversationID})
	}
}

// TypingIn reports the users currently typing in a conversation.
func (t *TypingCoordinator) TypingIn(id domain.ConversationID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var users []string
	for key := range t.entries {
		if key.conversation == id {
			users = append(users, key.user)
		}
	}
	return users
}
