//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"duplex/domain"
	"duplex/domain/event"

	"github.com/google/uuid"
)

// EventSink is one live client connection from the engine's point of view.
// Consume must be best-effort and fast: a slow or broken sink may drop the
// event but must never block the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.ServerEvent) error
}

// SinkResolver turns a connection id into its sink. Implemented by the
// connection registry; consumed by the room manager so room membership and
// connection ownership stay in separate components.
type SinkResolver interface {
	SinkFor(id domain.ConnectionID) (EventSink, bool)
}

// Persistence is the durable storage collaborator. The engine only ever
// talks to it through this surface; it owns users, conversations and
// messages once created.
//
// AppendDelivered and AppendRead are idempotent: they report false when the
// receipt already existed and must never store a second entry for the same
// user.
type Persistence interface {
	CreateConversation(ctx context.Context, c domain.Conversation) error
	FindConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	IsParticipant(ctx context.Context, id domain.ConversationID, userID string) (bool, error)
	TouchConversationActivity(ctx context.Context, id domain.ConversationID, messageID uuid.UUID, at time.Time) error

	CreateMessage(ctx context.Context, m domain.Message) error
	FindMessage(ctx context.Context, id uuid.UUID) (domain.Message, error)
	MessagesFor(ctx context.Context, id domain.ConversationID, cursor *string) ([]domain.Message, *string, error)
	AppendDelivered(ctx context.Context, messageID uuid.UUID, userID string, at time.Time) (bool, error)
	AppendRead(ctx context.Context, messageID uuid.UUID, userID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, id domain.ConversationID, userID string, at time.Time) (int, error)
}

// Authenticator is the auth collaborator: it resolves the credentials
// presented during the websocket handshake into a user identity.
type Authenticator interface {
	IdentityForConnection(credentials string) (string, error)
}

// MessageIndexer feeds the full-text search index. Indexing is best-effort;
// a failure must never abort message ingestion.
type MessageIndexer interface {
	Index(m domain.Message) error
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerName string

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
