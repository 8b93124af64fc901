package handler

import (
	"net/http"

	"mentormatch/internal/app/storage"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/req"
	"mentormatch/internal/pkg/resp"
)

// PresignUploadInput defines the JSON input structure for generating upload URL.
type PresignUploadInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignResourceUpload creates a time-limited upload URL for a file
// shared as a resource activity in a session.
func HandlePresignResourceUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		sessionID, customErr := sessionIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := storage.ValidateFileSize(input.FileSize); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if err := storage.ValidateFileType(input.FileName, input.MimeType); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		fileKey := storage.ResourceKey(string(sessionID), input.FileName)

		url, err := deps.Storage.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			storage.PresignedURLDuration,
		)
		if err != nil {
			logx.Error(err, "presign upload failed", "session_id", string(sessionID))
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
			"expiresIn":    int(storage.PresignedURLDuration.Seconds()),
		})
	}
}

// HandlePresignDownload redirects to a time-limited download URL for a
// session resource key.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if storage.SessionOfKey(fileKey) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), fileKey, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "presign download failed", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
