package ws

import (
	"context"
	"log/slog"
	"net"
	"time"

	"duplex/domain"
	"duplex/domain/event"
	"duplex/errors"
	"duplex/services"
	"duplex/sink"

	"github.com/gorilla/websocket"
)

// Tuning parameters for the pumps.
const (
	writeWait      = 10 * time.Second    // time allowed to write a message to the peer
	pongWait       = 20 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval   = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize = 64 * 1024           // max inbound frame size
)

// Connection binds one websocket to the sync engine: the read pump feeds
// inbound events to the service, the write pump drains the buffered sink.
type Connection struct {
	id     domain.ConnectionID
	userID string
	conn   *websocket.Conn
	sink   *sink.Buffered
	svc    services.ISyncService
	log    *slog.Logger
}

func NewConnection(id domain.ConnectionID, userID string, conn *websocket.Conn,
	buffered *sink.Buffered, svc services.ISyncService, log *slog.Logger) *Connection {
	return &Connection{
		id:     id,
		userID: userID,
		conn:   conn,
		sink:   buffered,
		svc:    svc,
		log:    log.With("connection_id", id, "user_id", userID),
	}
}

// Serve runs both pumps and blocks until the connection dies. Disconnect
// is guaranteed to run exactly once before it returns.
func (c *Connection) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx, cancel)
	c.readPump(ctx)

	cancel()
	c.svc.Disconnect(context.WithoutCancel(ctx), c.id)
	c.sink.Close()
	_ = c.conn.Close()
}

func (c *Connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure):
				c.log.Debug("Client disconnected")
			case isTimeout(err):
				c.log.Debug("Client timed out")
			default:
				c.log.Debug("Read failed", "error", err)
			}
			return
		}

		ev, err := event.Decode(data)
		if err != nil {
			c.log.Debug("Rejected inbound frame", "error", err)
			c.reportProblem(ctx, err)
			continue
		}

		if err := c.svc.HandleEvent(ctx, c.id, ev); err != nil {
			c.log.Debug("Event handling failed", "error", err)
			c.reportProblem(ctx, err)
		}
	}
}

// reportProblem sends the error event to this connection only.
func (c *Connection) reportProblem(ctx context.Context, err error) {
	problem := event.Problem{Message: errors.MapToClient(err)}
	if sinkErr := c.sink.Consume(ctx, problem); sinkErr != nil {
		c.log.Debug("Could not report problem to client", "error", sinkErr)
	}
}

func (c *Connection) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case ev := <-c.sink.Outbox():
			frame, err := event.Encode(ev)
			if err != nil {
				c.log.Error("Could not encode outbound event", "event", ev.Name(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
