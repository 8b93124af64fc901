package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mentormatch/internal/app/user"
	"mentormatch/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16 * 1024

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256

	// inbound event rate per connection.
	eventRate  = 20
	eventBurst = 40
)

// Client is one admitted websocket connection. Its identity is fixed at
// admission. rooms, closed and limitNotified belong to the Hub goroutine.
type Client struct {
	id       string
	identity user.Identity
	hub      *Hub
	conn     *websocket.Conn

	// a buffered channel of encoded frames waiting to be written.
	send chan []byte

	limiter *rate.Limiter

	rooms         map[string]struct{}
	closed        bool
	limitNotified bool

	logger zerolog.Logger
}

// NewClient constructs a Client for an authenticated connection. conn may be
// nil for connections that are driven without a socket.
func NewClient(hub *Hub, conn *websocket.Conn, identity user.Identity) *Client {
	id := randx.ConnectionID()

	return &Client{
		id:       id,
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		limiter:  rate.NewLimiter(rate.Limit(eventRate), eventBurst),
		rooms:    make(map[string]struct{}),
		logger: hub.logger.With().
			Str("conn_id", id).
			Str("user_id", identity.ID).
			Logger(),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated identity of the connection.
func (c *Client) Identity() user.Identity { return c.identity }

// enqueue queues frame without blocking and reports whether it fit.
// Only the Hub goroutine calls it.
func (c *Client) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close closes the send queue once. Only the Hub goroutine calls it.
func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads frames from the connection and hands them to the Hub until
// the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		if !c.handleFrame(frame) {
			return
		}
	}
}

// handleFrame decodes and rate-checks one frame and submits it to the Hub.
// It returns false once the Hub has stopped.
func (c *Client) handleFrame(frame []byte) bool {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Dropping malformed frame")
		c.hub.metrics.EventDropped("malformed")
		return true
	}

	return c.hub.submit(inboundEvent{
		client:  c,
		env:     env,
		limited: !c.limiter.Allow(),
	})
}

// cleanupOnDisconnect unregisters the client and closes the socket.
func (c *Client) cleanupOnDisconnect() {
	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// WritePump writes queued frames to the connection and sends heartbeats. It
// exits when the send queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame, or a close frame when the queue is closed.
// Returns false when WritePump should exit.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
