package storage

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/randx"
)

const (
	// MaxResourceSizeMB is the maximum allowed resource file size in megabytes.
	MaxResourceSizeMB = 10

	// MaxResourceSize is the maximum allowed resource file size in bytes.
	MaxResourceSize = MaxResourceSizeMB * 1024 * 1024

	// PresignedURLDuration is how long an upload or download URL stays valid.
	PresignedURLDuration = 5 * time.Minute

	keyPrefix = "sessions"
)

// ExtToMIME maps allowed file extensions to their MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".zip":  "application/zip",
}

// ValidateFileSize checks the declared size against MaxResourceSize.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if fileSize > MaxResourceSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxResourceSizeMB)
	}
	return nil
}

// ValidateFileType checks that the extension is allowed and matches mimeType.
func ValidateFileType(fileName, mimeType string) *errs.CustomError {
	ext := strings.ToLower(filepath.Ext(fileName))
	expected, ok := ExtToMIME[ext]
	if !ok || expected != strings.ToLower(mimeType) {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}
	return nil
}

// ResourceKey returns a fresh object key for a file attached to sessionID.
func ResourceKey(sessionID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(keyPrefix, sessionID, randx.ID()+ext)
}

// SessionOfKey returns the session id encoded in a resource key, or "" when
// key was not produced by ResourceKey.
func SessionOfKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return ""
	}
	if !randx.IsValidSessionID(parts[1]) {
		return ""
	}
	return parts[1]
}
