/*
Package realtime is the server side of Mentor Match's presence and session
activity broadcasting.

A single Hub goroutine owns the connection Registry, the session Rooms, the
PresenceTracker and the ActivityLog. Connection pumps and REST handlers talk to
it only through channels, so none of that state is shared between goroutines.

This file defines the wire envelope and the event payloads.
*/
package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mentormatch/internal/pkg/randx"
)

// Inbound and outbound event names.
const (
	EventPresenceUpdate  = "presence_update"
	EventSessionActivity = "session_activity"
	EventTypingIndicator = "typing_indicator"
	EventJoinSession     = "join_session"
	EventLeaveSession    = "leave_session"
	EventPing            = "ping"

	EventPresenceSnapshot = "presence_snapshot"
	EventSessionHistory   = "session_history"
	EventNotification     = "notification"
	EventPong             = "pong"
	EventError            = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into an Envelope frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// DecodeEnvelope parses a frame and checks the event name is present.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("missing event name")
	}
	return env, nil
}

// Timestamp returns t as Unix milliseconds, the unit of every timestamp field.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}

// ErrInvalidSessionID is returned for session ids that are neither a string
// nor an integer, or that fail randx.IsValidSessionID.
var ErrInvalidSessionID = errors.New("invalid session id")

var numericID = regexp.MustCompile(`^(0|[1-9][0-9]{0,14})$`)

// SessionID identifies a mentoring session. Clients send it either as a JSON
// string or as an int64; both forms name the same session. Canonical
// integers of up to 15 digits, which every JSON consumer holds exactly, are
// written back as numbers; longer ones are written as strings.
type SessionID string

// UnmarshalJSON accepts `42` and `"42"`.
func (s *SessionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}

	var id string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &id); err != nil {
			return ErrInvalidSessionID
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return ErrInvalidSessionID
		}
		if _, err := n.Int64(); err != nil {
			return ErrInvalidSessionID
		}
		id = n.String()
	}

	id = strings.TrimSpace(id)
	if !randx.IsValidSessionID(id) {
		return ErrInvalidSessionID
	}
	*s = SessionID(id)
	return nil
}

// MarshalJSON writes canonical integers as numbers and everything else as strings.
func (s SessionID) MarshalJSON() ([]byte, error) {
	if numericID.MatchString(string(s)) {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

// Room returns the room name for the session.
func (s SessionID) Room() string {
	return "session:" + string(s)
}

// ActivityType is the kind of a session activity entry.
type ActivityType string

const (
	ActivityNote     ActivityType = "note"
	ActivityCode     ActivityType = "code"
	ActivityQuestion ActivityType = "question"
	ActivityFeedback ActivityType = "feedback"
	ActivityResource ActivityType = "resource"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityNote, ActivityCode, ActivityQuestion, ActivityFeedback, ActivityResource:
		return true
	}
	return false
}

// Activity is the application-level content of a session activity.
type Activity struct {
	Type     ActivityType   `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionActivity is a stamped activity as relayed to room members and kept
// in the ActivityLog.
type SessionActivity struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	SessionID SessionID `json:"sessionId"`
	Activity  Activity  `json:"activity"`
	Timestamp int64     `json:"timestamp"`
}

// TypingContext is the input surface a typing indicator refers to.
type TypingContext string

const (
	TypingChat     TypingContext = "chat"
	TypingFeedback TypingContext = "feedback"
	TypingNotes    TypingContext = "notes"
)

// Normalize maps the empty context to chat and reports whether c is known.
func (c TypingContext) Normalize() (TypingContext, bool) {
	switch c {
	case "":
		return TypingChat, true
	case TypingChat, TypingFeedback, TypingNotes:
		return c, true
	}
	return c, false
}

// TypingIndicator is a stamped typing signal.
type TypingIndicator struct {
	UserID    string        `json:"userId"`
	SessionID SessionID     `json:"sessionId,omitempty"`
	TargetID  string        `json:"targetId,omitempty"`
	Context   TypingContext `json:"context"`
	IsTyping  bool          `json:"isTyping"`
	Timestamp int64         `json:"timestamp"`
}

// SessionHistory is sent to a connection when it explicitly joins a session.
type SessionHistory struct {
	SessionID SessionID         `json:"sessionId"`
	Entries   []SessionActivity `json:"entries"`
}

// ErrorPayload is sent to a connection whose event was refused.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PongPayload answers a ping.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// inbound payload shapes

type sessionRef struct {
	SessionID SessionID `json:"sessionId"`
}

type activityIn struct {
	SessionID SessionID `json:"sessionId"`
	Activity  *Activity `json:"activity"`
}

type typingIn struct {
	SessionID SessionID     `json:"sessionId"`
	TargetID  string        `json:"targetId"`
	Context   TypingContext `json:"context"`
	IsTyping  *bool         `json:"isTyping"`
}
