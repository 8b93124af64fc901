package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/randx"
)

// EventNotification is the realtime event carrying a new notification.
const EventNotification = "notification"

// Pusher delivers an event to every live connection of a user.
type Pusher interface {
	SendToUser(ctx context.Context, userID, event string, data any) (int, error)
}

// Pushed is the payload of a live notification event.
type Pushed struct {
	Notification Notification `json:"notification"`
	UnreadCount  int          `json:"unreadCount"`
}

// Service applies notification operations and pushes new entries live.
type Service struct {
	store  Store
	pusher Pusher
	now    func() time.Time
	logger zerolog.Logger
}

// NewService returns a Service. pusher may be nil.
func NewService(store Store, pusher Pusher) *Service {
	return &Service{
		store:  store,
		pusher: pusher,
		now:    time.Now,
		logger: logx.Component("notification"),
	}
}

// Create stores n for its user and pushes it to their connections. A failed
// push is logged; the notification is still stored.
func (s *Service) Create(ctx context.Context, n *Notification) error {
	n.ID = randx.ID()
	n.Read = false
	n.ReadAt = nil
	n.CreatedAt = s.now().UTC()

	if err := n.Validate(); err != nil {
		return err
	}
	if err := s.store.Create(ctx, n); err != nil {
		return err
	}

	if s.pusher == nil {
		return nil
	}

	unread, err := s.store.UnreadCount(ctx, n.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("Unread count failed, pushing without it")
	}

	delivered, err := s.pusher.SendToUser(ctx, n.UserID, EventNotification, Pushed{Notification: *n, UnreadCount: unread})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("Live notification push failed")
		return nil
	}

	s.logger.Debug().
		Str("user_id", n.UserID).
		Str("notification_id", n.ID).
		Int("connections", delivered).
		Msg("Notification pushed")
	return nil
}

func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	return s.store.List(ctx, userID, opts)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkRead(ctx, userID, id, s.now().UTC())
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}
