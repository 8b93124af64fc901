/*
Package user contains the account model and identity resolution.

Identity is the resolved record attached to every admitted websocket
connection and every authenticated REST request. Accounts are kept in a Store
(Postgres in deployments, memory in development and tests).
*/
package user

import (
	"strings"
	"time"

	"mentormatch/internal/pkg/auth/jwt"
)

// Platform roles.
const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
	RoleAdmin  = "admin"
)

// Identity is the public identity of an authenticated participant.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Account is a stored user, including its password hash.
type Account struct {
	Identity
	PasswordHash string
	CreatedAt    time.Time
}

// IsValidRole reports whether role may be chosen at registration.
func IsValidRole(role string) bool {
	return role == RoleMentor || role == RoleMentee
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FromPayload builds an Identity from token claims.
func FromPayload(p *jwt.Payload) Identity {
	return Identity{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
	}
}

// Payload returns the token claims for id.
func (id Identity) Payload() *jwt.Payload {
	return &jwt.Payload{
		ID:    id.ID,
		Name:  id.Name,
		Email: id.Email,
		Role:  id.Role,
	}
}
