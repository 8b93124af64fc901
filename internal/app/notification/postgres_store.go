package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mentormatch/internal/app/db"
)

// PostgresStore is a Store backed by the notifications table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a PostgresStore using pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ErrUnknownUser is returned when creating a notification for a missing user.
var ErrUnknownUser = errors.New("notification recipient does not exist")

func (s *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, read, related_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, textOrNull(n.RelatedID), n.CreatedAt,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownUser
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, message, type, read, related_id, created_at, read_at
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR NOT read)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		userID, opts.UnreadOnly, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

func (s *PostgresStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, $3)
		 WHERE id = $1 AND user_id = $2`,
		id, userID, at,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT read`,
		userID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PurgeRead(ctx context.Context, readBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE read AND read_at < $1`, readBefore)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.CollectableRow) (Notification, error) {
	var (
		n         Notification
		relatedID pgtype.Text
		createdAt pgtype.Timestamptz
		readAt    pgtype.Timestamptz
	)

	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &relatedID, &createdAt, &readAt); err != nil {
		return Notification{}, err
	}

	if relatedID.Valid {
		n.RelatedID = &relatedID.String
	}
	n.CreatedAt = createdAt.Time
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
