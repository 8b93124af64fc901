package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mentormatch/internal/app/realtime"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/randx"
	"mentormatch/internal/pkg/resp"
)

// HandleListPresence returns every online user's presence.
func HandleListPresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presences, err := deps.Hub.Presence(r.Context())
		if err != nil {
			resp.RespondError(w, r, realtimeError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": presences})
	}
}

// HandleSessionActivity returns the recorded activity of a session.
func HandleSessionActivity(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, customErr := sessionIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		entries, err := deps.Hub.SessionHistory(r.Context(), sessionID)
		if err != nil {
			resp.RespondError(w, r, realtimeError(err))
			return
		}

		resp.RespondSuccess(w, r, realtime.SessionHistory{
			SessionID: sessionID,
			Entries:   entries,
		})
	}
}

// HandleRealtimeConfig tells clients the realtime parameters they must
// mirror locally, such as the typing indicator lifetime.
func HandleRealtimeConfig(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"typingTimeoutMs": deps.Config.TypingTimeout().Milliseconds(),
			"activityLogSize": deps.Config.ActivityLogSize,
		})
	}
}

func sessionIDParam(r *http.Request) (realtime.SessionID, *errs.CustomError) {
	id := chi.URLParam(r, "id")
	if !randx.IsValidSessionID(id) {
		return "", errs.NewError(errs.ErrSessionIDInvalid)
	}
	return realtime.SessionID(id), nil
}
