package runtime

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"duplex/domain"
	"duplex/domain/event"
	"duplex/errors"
	"duplex/moderation"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestIngestionPipeline_PersistsThenFansOutToEveryone(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	alice := f.connect(ctx, "alice", "conn-a")
	bob := f.connect(ctx, "bob", "conn-b")
	f.rooms.Join("conv-1", "conn-a")
	f.rooms.Join("conv-1", "conn-b")

	// When alice sends a message
	msg, err := f.pipeline.Ingest(ctx, SendCommand{
		ConversationID: "conv-1",
		SenderID:       "alice",
		From:           "conn-a",
		Content:        "Hello Bob",
	})
	req.NoError(err)
	f.pipeline.Drain()

	// Then the message is durable
	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal("Hello Bob", stored.Content)
	req.Equal(domain.TypeText, stored.Type)

	// And both participants receive it, the sender included
	req.Len(alice.Named("new-message"), 1)
	req.Len(bob.Named("new-message"), 1)

	// And bob, being online, got a delivery receipt in the background
	req.True(stored.IsDeliveredTo("bob"))
	req.False(stored.IsDeliveredTo("alice"))

	// And the conversation activity was bumped
	conv, err := f.store.FindConversation(ctx, "conv-1")
	req.NoError(err)
	req.NotNil(conv.LastMessage)
	req.Equal(msg.ID, *conv.LastMessage)
}

func TestIngestionPipeline_NonParticipantIsRejectedWithoutSideEffects(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	alice := f.connect(ctx, "alice", "conn-a")
	f.rooms.Join("conv-1", "conn-a")

	// When an outsider tries to send
	_, err := f.pipeline.Ingest(ctx, SendCommand{
		ConversationID: "conv-1",
		SenderID:       "mallory",
		From:           "conn-m",
		Content:        "Let me in",
	})

	// Then the send is rejected and nothing reaches the room
	req.ErrorIs(err, errors.ErrNotAMember)
	req.Empty(alice.Events())
	req.Equal(uint64(1), f.stats.GetLatest().RejectedOperations)

	// And no message was persisted
	messages, _, listErr := f.store.MessagesFor(ctx, "conv-1", nil)
	req.NoError(listErr)
	req.Empty(messages)
}

func TestIngestionPipeline_UnknownConversationIsRejected(t *testing.T) {
	req := require.New(t)
	f := newEngine(t)

	_, err := f.pipeline.Ingest(context.Background(), SendCommand{
		ConversationID: "conv-404",
		SenderID:       "alice",
		Content:        "Anyone here?",
	})

	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func TestIngestionPipeline_ContentRules(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	tests := []struct {
		description string
		content     string
		msgType     domain.MessageType
		expected    error
	}{
		{
			description: "empty content is rejected",
			content:     "",
			expected:    errors.ErrInvalidPayload,
		},
		{
			description: "whitespace-only content is rejected",
			content:     "   \n\t  ",
			expected:    errors.ErrEmptyContent,
		},
		{
			description: "content above the cap is rejected",
			content:     strings.Repeat("x", domain.MaxContentLength+1),
			expected:    errors.ErrInvalidPayload,
		},
		{
			description: "unknown message type is rejected",
			content:     "hello",
			msgType:     domain.MessageType("carrier-pigeon"),
			expected:    errors.ErrInvalidPayload,
		},
		{
			description: "content at the cap passes",
			content:     strings.Repeat("x", domain.MaxContentLength),
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := f.pipeline.Ingest(ctx, SendCommand{
				ConversationID: "conv-1",
				SenderID:       "alice",
				Content:        tt.content,
				Type:           tt.msgType,
			})
			if tt.expected != nil {
				req.ErrorIs(err, tt.expected)
			} else {
				req.NoError(err)
			}
		})
	}
	f.pipeline.Drain()
}

func TestIngestionPipeline_AttachmentMetadataIsCarried(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	msg, err := f.pipeline.Ingest(ctx, SendCommand{
		ConversationID: "conv-1",
		SenderID:       "alice",
		Content:        "See the attached report",
		Type:           domain.TypeFile,
		FileURL:        "https://files.example.com/report.pdf",
		FileName:       "report.pdf",
		FileSize:       2048,
	})
	req.NoError(err)
	f.pipeline.Drain()

	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal(domain.TypeFile, stored.Type)
	req.NotNil(stored.Attachment)
	req.Equal("report.pdf", stored.Attachment.Name)
	req.Equal(int64(2048), stored.Attachment.Size)
}

func TestIngestionPipeline_ModerationCensorsBeforeFanOut(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	log := logs.GetLoggerFromLevel(slog.LevelError)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	req.NoError(err)
	f.pipeline.moderator = moderator

	bob := f.connect(ctx, "bob", "conn-b")
	f.rooms.Join("conv-1", "conn-b")

	msg, err := f.pipeline.Ingest(ctx, SendCommand{
		ConversationID: "conv-1",
		SenderID:       "alice",
		Content:        "The badger is loose",
	})
	req.NoError(err)
	f.pipeline.Drain()

	// Then both the stored and the broadcast copy are censored
	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal("The ****** is loose", stored.Content)

	broadcasts := bob.Named("new-message")
	req.Len(broadcasts, 1)
	req.Equal("The ****** is loose", broadcasts[0].(event.NewMessage).Message.Content)
}

func TestIngestionPipeline_OfflineParticipantGetsNoDeliveryReceipt(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newEngine(t)
	f.seedConversation(t, "conv-1", "alice", "bob")

	// Given bob is offline
	f.connect(ctx, "alice", "conn-a")
	f.rooms.Join("conv-1", "conn-a")

	msg, err := f.pipeline.Ingest(ctx, SendCommand{
		ConversationID: "conv-1",
		SenderID:       "alice",
		Content:        "Are you there?",
	})
	req.NoError(err)
	f.pipeline.Drain()

	stored, err := f.store.FindMessage(ctx, msg.ID)
	req.NoError(err)
	req.Empty(stored.DeliveredTo)
}
