package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/metrics"
)

// ErrHubStopped is returned by Hub methods called after Stop.
var ErrHubStopped = errors.New("realtime hub stopped")

// Options configures a Hub.
type Options struct {
	// ActivityLogSize is the per-session activity capacity.
	ActivityLogSize int

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"onlineUsers"`
	Rooms       int `json:"rooms"`
	Sessions    int `json:"sessionsWithActivity"`
}

// PresenceEvent is the presence_update payload emitted on registry transitions.
type PresenceEvent struct {
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	Status    Status `json:"status"`
	LastSeen  int64  `json:"lastSeen,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type inboundEvent struct {
	client  *Client
	env     Envelope
	limited bool
}

// Hub owns all realtime state and serializes every mutation through Run.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	presence *PresenceTracker
	activity *ActivityLog

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	commands   chan func()

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(opts Options) *Hub {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Hub{
		registry:   NewRegistry(),
		rooms:      NewRooms(),
		presence:   NewPresenceTracker(),
		activity:   NewActivityLog(opts.ActivityLogSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		commands:   make(chan func()),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		metrics:    opts.Metrics,
		logger:     logx.Component("realtime"),
		now:        now,
	}
}

// Run processes registrations, inbound events and commands until Stop.
func (h *Hub) Run() {
	defer h.shutdown()

	h.logger.Info().Msg("Realtime hub started")

	for {
		select {
		case <-h.stop:
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case ev := <-h.inbound:
			h.route(ev)

		case fn := <-h.commands:
			fn()
		}
	}
}

// Stop ends Run. Every connection's send queue is closed, which makes its
// WritePump send a close frame.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) shutdown() {
	for _, c := range h.registry.All() {
		c.close()
	}
	h.logger.Info().Int("connections", h.registry.Len()).Msg("Realtime hub stopped")
	close(h.done)
}

// Register admits an authenticated connection.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.stop:
		return ErrHubStopped
	}
}

// Unregister removes a connection. Unknown connections are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

// submit hands an inbound event to the loop and reports false after Stop.
func (h *Hub) submit(ev inboundEvent) bool {
	select {
	case h.inbound <- ev:
		return true
	case <-h.stop:
		return false
	}
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case h.commands <- cmd:
	case <-h.stop:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished
	return nil
}

// SendToUser delivers an event to every live connection of userID and returns
// how many connections it was queued on.
func (h *Hub) SendToUser(ctx context.Context, userID, event string, data any) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}

	var n int
	err = h.do(ctx, func() {
		n = h.deliver(h.registry.Connections(userID), frame, nil)
	})
	return n, err
}

// SendToSession delivers an event to every member of the session's room.
func (h *Hub) SendToSession(ctx context.Context, id SessionID, event string, data any) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}

	var n int
	err = h.do(ctx, func() {
		n = h.deliver(h.rooms.Members(id.Room()), frame, nil)
	})
	return n, err
}

// BroadcastToAll delivers an event to every live connection.
func (h *Hub) BroadcastToAll(ctx context.Context, event string, data any) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}

	var n int
	err = h.do(ctx, func() {
		n = h.deliver(h.registry.All(), frame, nil)
	})
	return n, err
}

// Presence returns the presence of every online user.
func (h *Hub) Presence(ctx context.Context) ([]Presence, error) {
	var out []Presence
	err := h.do(ctx, func() {
		out = h.presence.Snapshot()
	})
	return out, err
}

// SessionHistory returns the recorded activities of a session.
func (h *Hub) SessionHistory(ctx context.Context, id SessionID) ([]SessionActivity, error) {
	var out []SessionActivity
	err := h.do(ctx, func() {
		out = h.activity.History(id)
	})
	return out, err
}

// Stats returns current counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := h.do(ctx, func() {
		s = Stats{
			Connections: h.registry.Len(),
			OnlineUsers: h.registry.UserCount(),
			Rooms:       h.rooms.Len(),
			Sessions:    h.activity.Sessions(),
		}
	})
	return s, err
}

func (h *Hub) handleRegister(c *Client) {
	if _, ok := h.registry.Get(c.id); ok {
		return
	}

	first := h.registry.Register(c)
	now := h.now()

	if first {
		h.presence.Online(c.identity, now)
	} else {
		h.presence.Touch(c.identity.ID, now)
	}

	c.logger.Info().
		Bool("first_connection", first).
		Int("user_connections", h.registry.ConnectionCount(c.identity.ID)).
		Msg("Connection admitted")

	h.sendTo(c, EventPresenceSnapshot, h.presence.Snapshot())

	if first {
		h.broadcastPresence(PresenceEvent{
			UserID:    c.identity.ID,
			Name:      c.identity.Name,
			Status:    StatusOnline,
			Timestamp: Timestamp(now),
		})
	}

	h.updateGauges()
}

func (h *Hub) handleUnregister(c *Client) {
	removed, last := h.registry.Unregister(c)
	if !removed {
		return
	}

	h.rooms.LeaveAll(c)
	c.close()

	c.logger.Info().Bool("last_connection", last).Msg("Connection closed")

	if last {
		now := h.now()
		final := h.presence.Offline(c.identity.ID, now)
		h.broadcastPresence(PresenceEvent{
			UserID:    final.UserID,
			Name:      final.Name,
			Status:    StatusOffline,
			LastSeen:  final.LastSeen,
			Timestamp: Timestamp(now),
		})
	}

	h.updateGauges()
}

func (h *Hub) broadcastPresence(ev PresenceEvent) {
	frame, err := Encode(EventPresenceUpdate, ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode presence event")
		return
	}

	h.deliver(h.registry.All(), frame, nil)
	h.metrics.PresenceBroadcast(string(ev.Status))
}

// sendTo queues a single event on c.
func (h *Hub) sendTo(c *Client, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode event")
		return
	}
	h.deliver([]*Client{c}, frame, nil)
}

// deliver queues frame on every target except exclude. Connections whose
// queue is full are unregistered after the fan-out.
func (h *Hub) deliver(targets []*Client, frame []byte, exclude *Client) int {
	var slow []*Client
	n := 0

	for _, c := range targets {
		if c == exclude || c.closed {
			continue
		}
		if c.enqueue(frame) {
			n++
			continue
		}
		slow = append(slow, c)
	}

	for _, c := range slow {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping connection")
		h.metrics.EventDropped("slow_consumer")
		h.handleUnregister(c)
	}

	return n
}

func (h *Hub) updateGauges() {
	h.metrics.SetGauges(h.registry.Len(), h.registry.UserCount(), h.rooms.Len())
}
