/*
Package notification stores per-user notifications, pushes new ones to the
user's live connections, and purges old read ones on a schedule.
*/
package notification

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Notification types.
const (
	TypeSession  = "session"
	TypeMatch    = "match"
	TypeFeedback = "feedback"
	TypeMessage  = "message"
	TypeSystem   = "system"
)

const (
	maxTitleLength   = 200
	maxMessageLength = 2000

	// DefaultListLimit bounds List when no limit is given.
	DefaultListLimit = 50
)

var (
	// ErrNotFound is returned when the notification does not exist or belongs
	// to another user.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalid is returned for notifications failing Validate.
	ErrInvalid = errors.New("invalid notification")
)

// Notification is one entry in a user's notification list.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
	RelatedID *string    `json:"related_id"`
	ReadAt    *time.Time `json:"-"`
}

// IsValidType reports whether t is a known notification type.
func IsValidType(t string) bool {
	switch t {
	case TypeSession, TypeMatch, TypeFeedback, TypeMessage, TypeSystem:
		return true
	}
	return false
}

// Validate checks required fields and lengths.
func (n *Notification) Validate() error {
	switch {
	case n.UserID == "":
		return errors.Join(ErrInvalid, errors.New("user id required"))
	case strings.TrimSpace(n.Title) == "" || len(n.Title) > maxTitleLength:
		return errors.Join(ErrInvalid, errors.New("title must be 1-200 bytes"))
	case len(n.Message) > maxMessageLength:
		return errors.Join(ErrInvalid, errors.New("message must be at most 2000 bytes"))
	case !IsValidType(n.Type):
		return errors.Join(ErrInvalid, errors.New("unknown type"))
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
}

// Store persists notifications. Every per-user method scopes by userID.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	PurgeRead(ctx context.Context, readBefore time.Time) (int64, error)
}
