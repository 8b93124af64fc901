package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mentormatch/internal/pkg/errs"
)

var (
	errEmptyPayload    = errors.New("empty payload")
	errMissingSession  = errors.New("missing sessionId")
	errMissingActivity = errors.New("missing activity")
	errActivityType    = errors.New("unknown activity type")
	errTypingContext   = errors.New("unknown typing context")
	errTypingScope     = errors.New("typing indicator needs sessionId or targetId")
	errPresenceStatus  = errors.New("status must be online, away or busy")
	errPresenceField   = errors.New("activity must be an object with a type")
)

// route stamps and dispatches one inbound event. Malformed events are logged
// and dropped; nothing an untrusted client sends can stop the loop.
func (h *Hub) route(ev inboundEvent) {
	c := ev.client
	if current, ok := h.registry.Get(c.id); !ok || current != c {
		return
	}

	if ev.limited {
		h.metrics.EventDropped("rate_limited")
		if !c.limitNotified {
			c.limitNotified = true
			h.sendError(c, errs.NewError(errs.ErrRateLimitExceeded))
		}
		return
	}
	c.limitNotified = false

	now := h.now()
	h.presence.Touch(c.identity.ID, now)

	var err error
	switch ev.env.Event {
	case EventPresenceUpdate:
		err = h.routePresence(c, ev.env.Data, now)
	case EventSessionActivity:
		err = h.routeActivity(c, ev.env.Data, now)
	case EventTypingIndicator:
		err = h.routeTyping(c, ev.env.Data, now)
	case EventJoinSession:
		err = h.routeJoin(c, ev.env.Data)
	case EventLeaveSession:
		err = h.routeLeave(c, ev.env.Data)
	case EventPing:
		h.sendTo(c, EventPong, PongPayload{Timestamp: Timestamp(now)})
	default:
		c.logger.Warn().Str("event", ev.env.Event).Msg("Dropping unknown event")
		h.metrics.EventDropped("unknown_event")
		return
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("event", ev.env.Event).Int("code", errs.ErrEventMalformed).Msg("Dropping malformed event")
		h.metrics.EventDropped("malformed")
		return
	}

	h.metrics.EventRouted(ev.env.Event)
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errEmptyPayload
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// routePresence merges the client's fields with the sender id and timestamp
// and rebroadcasts them to every connection.
func (h *Hub) routePresence(c *Client, data json.RawMessage, now time.Time) error {
	fields := map[string]any{}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	var status Status
	if raw, ok := fields["status"]; ok {
		s, isString := raw.(string)
		if !isString || !Status(s).Settable() {
			return errPresenceStatus
		}
		status = Status(s)
	}

	var activity *CurrentActivity
	if raw, ok := fields["activity"]; ok && raw != nil {
		obj, isObject := raw.(map[string]any)
		if !isObject {
			return errPresenceField
		}
		typ, _ := obj["type"].(string)
		if typ == "" {
			return errPresenceField
		}
		details, _ := obj["details"].(string)
		activity = &CurrentActivity{Type: typ, Details: details}
	}

	current, _ := h.presence.Update(c.identity.ID, status, activity, now)

	fields["userId"] = c.identity.ID
	fields["timestamp"] = Timestamp(now)

	frame, err := Encode(EventPresenceUpdate, fields)
	if err != nil {
		return err
	}
	h.deliver(h.registry.All(), frame, nil)
	h.metrics.PresenceBroadcast(string(current.Status))
	return nil
}

// routeActivity records the activity and relays it to the other members of
// the session room, joining the sender first if needed.
func (h *Hub) routeActivity(c *Client, data json.RawMessage, now time.Time) error {
	var in activityIn
	if err := decodePayload(data, &in); err != nil {
		return err
	}
	if in.SessionID == "" {
		return errMissingSession
	}
	if in.Activity == nil {
		return errMissingActivity
	}
	if !in.Activity.Type.Valid() {
		return fmt.Errorf("%w: %q", errActivityType, in.Activity.Type)
	}

	h.joinRoom(c, in.SessionID)

	entry := SessionActivity{
		UserID:    c.identity.ID,
		UserName:  c.identity.Name,
		SessionID: in.SessionID,
		Activity:  *in.Activity,
		Timestamp: Timestamp(now),
	}
	h.activity.Append(entry)

	frame, err := Encode(EventSessionActivity, entry)
	if err != nil {
		return err
	}
	h.deliver(h.rooms.Members(in.SessionID.Room()), frame, c)
	return nil
}

// routeTyping relays a typing signal to a session room, or to the target
// user's connections when no session is named.
func (h *Hub) routeTyping(c *Client, data json.RawMessage, now time.Time) error {
	var in typingIn
	if err := decodePayload(data, &in); err != nil {
		return err
	}

	ctx, ok := in.Context.Normalize()
	if !ok {
		return fmt.Errorf("%w: %q", errTypingContext, in.Context)
	}

	indicator := TypingIndicator{
		UserID:    c.identity.ID,
		SessionID: in.SessionID,
		TargetID:  in.TargetID,
		Context:   ctx,
		IsTyping:  in.IsTyping == nil || *in.IsTyping,
		Timestamp: Timestamp(now),
	}

	switch {
	case in.SessionID != "":
		h.joinRoom(c, in.SessionID)
		frame, err := Encode(EventTypingIndicator, indicator)
		if err != nil {
			return err
		}
		h.deliver(h.rooms.Members(in.SessionID.Room()), frame, c)

	case in.TargetID != "":
		if in.TargetID == c.identity.ID {
			return nil
		}
		frame, err := Encode(EventTypingIndicator, indicator)
		if err != nil {
			return err
		}
		h.deliver(h.registry.Connections(in.TargetID), frame, nil)

	default:
		return errTypingScope
	}

	return nil
}

// routeJoin joins the session room and replies with its activity history.
func (h *Hub) routeJoin(c *Client, data json.RawMessage) error {
	var in sessionRef
	if err := decodePayload(data, &in); err != nil {
		return err
	}
	if in.SessionID == "" {
		return errMissingSession
	}

	h.joinRoom(c, in.SessionID)
	h.sendTo(c, EventSessionHistory, SessionHistory{
		SessionID: in.SessionID,
		Entries:   h.activity.History(in.SessionID),
	})
	return nil
}

func (h *Hub) routeLeave(c *Client, data json.RawMessage) error {
	var in sessionRef
	if err := decodePayload(data, &in); err != nil {
		return err
	}
	if in.SessionID == "" {
		return errMissingSession
	}

	if h.rooms.Leave(in.SessionID.Room(), c) {
		c.logger.Debug().Str("room", in.SessionID.Room()).Msg("Left room")
		h.updateGauges()
	}
	return nil
}

func (h *Hub) joinRoom(c *Client, id SessionID) {
	if h.rooms.Join(id.Room(), c) {
		c.logger.Debug().Str("room", id.Room()).Msg("Joined room")
		h.updateGauges()
	}
}

func (h *Hub) sendError(c *Client, e *errs.CustomError) {
	h.sendTo(c, EventError, ErrorPayload{Code: e.Code, Message: e.Message})
}
