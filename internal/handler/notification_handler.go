package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mentormatch/internal/app/notification"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/req"
	"mentormatch/internal/pkg/resp"
)

const maxListLimit = 100

// CreateNotificationInput is the body of POST /api/notifications.
type CreateNotificationInput struct {
	UserID    string  `json:"userId"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Type      string  `json:"type"`
	RelatedID *string `json:"relatedId"`
}

// HandleListNotifications lists the caller's notifications, newest first.
// Query: unread=true, limit=N.
func HandleListNotifications(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := jwt.GetPayloadFromContext(r).ID

		opts := notification.ListOptions{
			UnreadOnly: r.URL.Query().Get("unread") == "true",
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > maxListLimit {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			opts.Limit = limit
		}

		items, err := deps.Notifications.List(r.Context(), userID, opts)
		if err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}
		if items == nil {
			items = []notification.Notification{}
		}

		resp.RespondSuccess(w, r, map[string]any{"notifications": items})
	}
}

// HandleUnreadCount returns the caller's unread notification count.
func HandleUnreadCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Notifications.UnreadCount(r.Context(), jwt.GetPayloadFromContext(r).ID)
		if err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"count": count})
	}
}

// HandleCreateNotification stores a notification for userId and pushes it
// to their live connections.
func HandleCreateNotification(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateNotificationInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		n := &notification.Notification{
			UserID:    input.UserID,
			Title:     input.Title,
			Message:   input.Message,
			Type:      input.Type,
			RelatedID: input.RelatedID,
		}
		if err := deps.Notifications.Create(r.Context(), n); err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}

		logx.Debug("Notification created",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"sender_id", jwt.GetPayloadFromContext(r).ID,
		)
		resp.RespondSuccess(w, r, n)
	}
}

// HandleMarkRead marks one of the caller's notifications as read.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := jwt.GetPayloadFromContext(r).ID
		if err := deps.Notifications.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMarkAllRead marks every unread notification of the caller as read.
func HandleMarkAllRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := deps.Notifications.MarkAllRead(r.Context(), jwt.GetPayloadFromContext(r).ID)
		if err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"updated": updated})
	}
}

// HandleDeleteNotification deletes one of the caller's notifications.
func HandleDeleteNotification(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := jwt.GetPayloadFromContext(r).ID
		if err := deps.Notifications.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			resp.RespondError(w, r, notificationError(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

func notificationError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		return errs.NewError(errs.ErrNotificationNotFound)
	case errors.Is(err, notification.ErrInvalid), errors.Is(err, notification.ErrUnknownUser):
		return errs.NewError(errs.ErrInvalidParams)
	default:
		return errs.From(err)
	}
}
