// Package sink provides EventSink implementations bridging the engine to
// transports.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"duplex/domain/event"
)

// Buffered decouples the broadcasting goroutine from the websocket write
// pump through a bounded channel. When the client cannot keep up the event
// is dropped rather than blocking the room fan-out.
type Buffered struct {
	log    *slog.Logger
	out    chan event.ServerEvent
	once   sync.Once
	closed chan struct{}
}

func NewBuffered(log *slog.Logger, capacity int) *Buffered {
	if capacity <= 0 {
		capacity = 64
	}
	return &Buffered{
		log:    log,
		out:    make(chan event.ServerEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Consume enqueues one event for the write pump. Never blocks: a full
// buffer means a slow consumer, and the event is dropped with an error the
// caller may count but must not propagate.
func (b *Buffered) Consume(ctx context.Context, e event.ServerEvent) error {
	select {
	case <-b.closed:
		return fmt.Errorf("sink closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case b.out <- e:
		return nil
	default:
		b.log.Debug("Sink buffer full, dropping event", "event", e.Name())
		return fmt.Errorf("sink buffer full, dropped %q", e.Name())
	}
}

// Outbox is read by the connection's write pump.
func (b *Buffered) Outbox() <-chan event.ServerEvent {
	return b.out
}

// Close makes every further Consume fail fast. Safe to call twice.
func (b *Buffered) Close() {
	b.once.Do(func() { close(b.closed) })
}
