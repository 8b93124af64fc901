package client

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mentormatch/internal/app/realtime"
	"mentormatch/internal/app/user"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/backoff"
	"mentormatch/internal/pkg/logx"
)

// Local events published on the Bus in addition to every server event.
const (
	// EventStateChange carries a StateChange.
	EventStateChange = "client:state"

	// EventPresenceChange carries the []realtime.Presence after a presence event.
	EventPresenceChange = "client:presence"

	// EventTypingChange carries the []realtime.TypingIndicator after an indicator
	// appears, is cleared or expires.
	EventTypingChange = "client:typing"
)

var errMissingUser = errors.New("presence event without userId")

// StateChange is the payload of EventStateChange.
type StateChange struct {
	State State
	Err   error
}

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string

	// Dialer defaults to WebSocketDialer.
	Dialer Dialer

	Policy      *backoff.Policy
	MaxAttempts int

	// TypingTimeout defaults to DefaultTypingTimeout.
	TypingTimeout time.Duration

	// ActivityCapacity bounds the per-session feed.
	ActivityCapacity int
}

// Client is a realtime connection plus the local state derived from it.
type Client struct {
	bus      *Bus
	manager  *Manager
	presence *PresenceStore
	typing   *TypingTracker
	activity *ActivityFeed
	logger   zerolog.Logger

	// mu orders store updates from inbound frames against Disconnect.
	mu       sync.Mutex
	self     user.Identity
	sessions map[realtime.SessionID]struct{}
}

type localEvent struct {
	event string
	data  any
}

// New returns a disconnected Client. Call Connect once the user is signed in.
func New(opts Options) *Client {
	c := &Client{
		bus:      NewBus(),
		presence: NewPresenceStore(),
		activity: NewActivityFeed(opts.ActivityCapacity),
		logger:   logx.Component("client"),
		sessions: make(map[realtime.SessionID]struct{}),
	}
	c.typing = NewTypingTracker(opts.TypingTimeout, func(active []realtime.TypingIndicator) {
		c.bus.Publish(EventTypingChange, active)
	})

	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}

	c.manager = NewManager(ManagerOptions{
		URL:         opts.URL,
		Dialer:      dialer,
		Policy:      opts.Policy,
		MaxAttempts: opts.MaxAttempts,
		OnMessage:   c.handleFrame,
		OnStateChange: func(s State, err error) {
			if s == StateConnected {
				c.rejoin()
			}
			c.bus.Publish(EventStateChange, StateChange{State: s, Err: err})
		},
	})

	return c
}

// Connect starts the connection lifecycle with token. The caller's identity
// is read from the token claims.
func (c *Client) Connect(token string) {
	var self user.Identity
	if payload, err := jwt.PeekPayload(token); err == nil {
		self = user.FromPayload(payload)
	} else {
		c.logger.Warn().Err(err).Msg("Token claims unreadable, own activity will not be echoed")
	}

	c.mu.Lock()
	c.self = self
	c.mu.Unlock()

	c.manager.Connect(token)
}

// Disconnect logs out: closes the connection, cancels retries and clears
// local state, including the sessions to rejoin. No frame of the closed
// connection reaches the stores once it returns.
func (c *Client) Disconnect() {
	c.manager.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing.Stop()
	c.presence.Clear()
	c.self = user.Identity{}
	c.sessions = make(map[realtime.SessionID]struct{})
}

func (c *Client) State() State { return c.manager.State() }

func (c *Client) RetryCount() int { return c.manager.RetryCount() }

func (c *Client) LastError() error { return c.manager.LastError() }

func (c *Client) Bus() *Bus { return c.bus }

func (c *Client) Presence() *PresenceStore { return c.presence }

func (c *Client) Typing() *TypingTracker { return c.typing }

func (c *Client) Activity() *ActivityFeed { return c.activity }

// Self returns the identity from the current token.
func (c *Client) Self() user.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Sessions returns the joined sessions, which are rejoined on every connect.
func (c *Client) Sessions() []realtime.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]realtime.SessionID, 0, len(c.sessions))
	for id := range c.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Subscribe is shorthand for Bus().Subscribe.
func (c *Client) Subscribe(event string, fn Listener) func() {
	return c.bus.Subscribe(event, fn)
}

// UpdatePresence sets the caller's status and, optionally, current activity.
func (c *Client) UpdatePresence(status realtime.Status, activity *realtime.CurrentActivity) error {
	payload := map[string]any{}
	if status != "" {
		payload["status"] = status
	}
	if activity != nil {
		payload["activity"] = activity
	}
	return c.send(realtime.EventPresenceUpdate, payload)
}

// SendActivity posts an activity to a session. The server relays it to the
// other members only, so it is added to the local feed here.
func (c *Client) SendActivity(sessionID realtime.SessionID, activity realtime.Activity) error {
	err := c.send(realtime.EventSessionActivity, map[string]any{
		"sessionId": sessionID,
		"activity":  activity,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	self := c.self
	c.sessions[sessionID] = struct{}{}
	c.mu.Unlock()

	if self.ID != "" {
		c.activity.Add(realtime.SessionActivity{
			UserID:    self.ID,
			UserName:  self.Name,
			SessionID: sessionID,
			Activity:  activity,
			Timestamp: realtime.Timestamp(time.Now()),
		})
	}
	return nil
}

// SendTyping signals typing in a session, or to targetID when sessionID is empty.
func (c *Client) SendTyping(sessionID realtime.SessionID, targetID string, ctx realtime.TypingContext, isTyping bool) error {
	payload := map[string]any{
		"context":  ctx,
		"isTyping": isTyping,
	}
	if sessionID != "" {
		payload["sessionId"] = sessionID
	} else {
		payload["targetId"] = targetID
	}
	return c.send(realtime.EventTypingIndicator, payload)
}

// JoinSession joins a session room; the server replies with its history.
// The session is remembered and joined again after every reconnect. While
// disconnected the join is deferred to the next connect.
func (c *Client) JoinSession(id realtime.SessionID) error {
	c.mu.Lock()
	c.sessions[id] = struct{}{}
	c.mu.Unlock()

	err := c.send(realtime.EventJoinSession, map[string]any{"sessionId": id})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// LeaveSession leaves a session room and drops its local feed.
func (c *Client) LeaveSession(id realtime.SessionID) error {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
	c.activity.Forget(id)

	err := c.send(realtime.EventLeaveSession, map[string]any{"sessionId": id})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// rejoin sends join_session for every remembered session on a fresh
// connection; the server forgets room membership when a connection closes.
func (c *Client) rejoin() {
	for _, id := range c.Sessions() {
		if err := c.send(realtime.EventJoinSession, map[string]any{"sessionId": id}); err != nil {
			c.logger.Warn().Err(err).Str("session", string(id)).Msg("Rejoin failed")
			return
		}
	}
}

func (c *Client) send(event string, data any) error {
	frame, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}
	return c.manager.Send(frame)
}

// handleFrame updates local state and then publishes the local change
// events followed by the raw event. Frames of a connection torn down in the
// meantime are dropped.
func (c *Client) handleFrame(conn uint64, frame []byte) {
	env, err := realtime.DecodeEnvelope(frame)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Dropping undecodable frame")
		return
	}

	c.mu.Lock()
	if !c.manager.Current(conn) {
		c.mu.Unlock()
		return
	}
	local, err := c.apply(env)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("event", env.Event).Msg("Ignoring malformed event")
	}

	for _, ev := range local {
		if !c.manager.Current(conn) {
			return
		}
		c.bus.Publish(ev.event, ev.data)
	}
	if c.manager.Current(conn) {
		c.bus.Publish(env.Event, env.Data)
	}
}

// apply runs with c.mu held and must not call listeners.
func (c *Client) apply(env realtime.Envelope) ([]localEvent, error) {
	switch env.Event {
	case realtime.EventPresenceSnapshot:
		var snapshot []realtime.Presence
		if err := json.Unmarshal(env.Data, &snapshot); err != nil {
			return nil, err
		}
		c.presence.Reset(snapshot)
		return []localEvent{{EventPresenceChange, c.presence.List()}}, nil

	case realtime.EventPresenceUpdate:
		if err := c.presence.Apply(env.Data); err != nil {
			return nil, err
		}
		return []localEvent{{EventPresenceChange, c.presence.List()}}, nil

	case realtime.EventTypingIndicator:
		var ind realtime.TypingIndicator
		if err := json.Unmarshal(env.Data, &ind); err != nil {
			return nil, err
		}
		if active, changed := c.typing.Apply(ind); changed {
			return []localEvent{{EventTypingChange, active}}, nil
		}

	case realtime.EventSessionActivity:
		var a realtime.SessionActivity
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, err
		}
		c.activity.Add(a)

	case realtime.EventSessionHistory:
		var h realtime.SessionHistory
		if err := json.Unmarshal(env.Data, &h); err != nil {
			return nil, err
		}
		c.activity.Load(h)
	}
	return nil, nil
}
