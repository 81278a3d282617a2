package runtime

import (
	"testing"
	"time"

	"duplex/domain"

	"github.com/stretchr/testify/require"
)

func TestConnectionRegistry_FirstConnectionBecomesOnline(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	// When the first connection registers
	reg := registry.Register("alice", "conn-1", &captureSink{})

	// Then the user transitions online
	req.True(reg.BecameOnline)
	req.True(registry.IsOnline("alice"))

	// And a second tab does not re-trigger the transition
	reg = registry.Register("alice", "conn-2", &captureSink{})
	req.False(reg.BecameOnline)
	req.Len(registry.ConnectionsFor("alice"), 2)
}

func TestConnectionRegistry_LastDisconnectBecomesOffline(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()
	registry.Register("alice", "conn-1", &captureSink{})
	registry.Register("alice", "conn-2", &captureSink{})

	// When one of two connections goes away
	userID, becameOffline := registry.Unregister("conn-1")

	// Then the user is still online through the other tab
	req.Equal("alice", userID)
	req.False(becameOffline)
	req.True(registry.IsOnline("alice"))

	// When the last connection goes away
	userID, becameOffline = registry.Unregister("conn-2")

	// Then the user transitions offline with a lastSeen stamp
	req.Equal("alice", userID)
	req.True(becameOffline)
	req.False(registry.IsOnline("alice"))
	req.WithinDuration(time.Now(), registry.Presence("alice").LastSeen, time.Second)
}

func TestConnectionRegistry_UnknownConnectionIsNoOp(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	userID, becameOffline := registry.Unregister("ghost")

	req.Empty(userID)
	req.False(becameOffline)
}

func TestConnectionRegistry_DuplicateUnregisterIsHarmless(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()
	registry.Register("alice", "conn-1", &captureSink{})

	_, becameOffline := registry.Unregister("conn-1")
	req.True(becameOffline)

	// A second teardown of the same connection changes nothing
	userID, becameOffline := registry.Unregister("conn-1")
	req.Empty(userID)
	req.False(becameOffline)
}

func TestConnectionRegistry_SinksExceptSkipsSubject(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()
	registry.Register("alice", "conn-1", &captureSink{})
	registry.Register("alice", "conn-2", &captureSink{})
	registry.Register("bob", "conn-3", &captureSink{})

	// Presence broadcasts go to everyone but the subject's own connections
	req.Len(registry.SinksExcept("alice"), 1)
	req.Len(registry.SinksExcept("bob"), 2)
	req.Len(registry.SinksExcept("carol"), 3)
}

func TestConnectionRegistry_UserOf(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()
	registry.Register("alice", "conn-1", &captureSink{})

	userID, ok := registry.UserOf("conn-1")
	req.True(ok)
	req.Equal("alice", userID)

	_, ok = registry.UserOf(domain.ConnectionID("ghost"))
	req.False(ok)
}
