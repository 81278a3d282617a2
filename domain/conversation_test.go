package domain

import (
	"testing"
	"time"

	"duplex/errors"

	"github.com/stretchr/testify/require"
)

func TestNewPrivateConversation(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()

	conv, err := NewPrivateConversation("conv-1", "alice", "bob", now)
	req.NoError(err)
	req.Len(conv.Participants, 2)
	req.Equal(now, conv.CreatedAt)
	req.Equal(now, conv.LastActivity)

	_, err = NewPrivateConversation("conv-2", "alice", "alice", now)
	req.ErrorIs(err, errors.ErrNotPrivatePair)

	_, err = NewPrivateConversation("conv-3", "alice", "", now)
	req.ErrorIs(err, errors.ErrNotPrivatePair)
}

func TestConversation_Participants(t *testing.T) {
	req := require.New(t)
	conv, err := NewPrivateConversation("conv-1", "alice", "bob", time.Now().UTC())
	req.NoError(err)

	req.True(conv.HasParticipant("alice"))
	req.False(conv.HasParticipant("mallory"))
	req.Equal([]string{"bob"}, conv.OtherParticipants("alice"))
	req.Equal([]string{"alice", "bob"}, conv.OtherParticipants("mallory"))
}
