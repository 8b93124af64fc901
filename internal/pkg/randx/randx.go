/*
Package randx generates uuid-based ids for connections and records and
validates client supplied session ids.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxSessionIDLength bounds client supplied session ids.
	MaxSessionIDLength = 64
)

// ConnectionID returns a new opaque connection identifier.
func ConnectionID() string {
	return "c_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ID returns a new UUID v4 string for stored records.
func ID() string {
	return uuid.NewString()
}

// IsValidSessionID reports whether id can be used as a mentoring session id:
// 1 to MaxSessionIDLength characters of [A-Za-z0-9_-].
func IsValidSessionID(id string) bool {
	if id == "" || len(id) > MaxSessionIDLength {
		return false
	}

	for _, char := range id {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
		case char == '-' || char == '_':
		default:
			return false
		}
	}

	return true
}
