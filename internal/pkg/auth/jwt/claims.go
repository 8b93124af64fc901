package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set carried by Mentor Match identity tokens.
type Payload struct {
	jwt.StandardClaims

	// ID is the platform user id.
	ID string `json:"id"`

	// Name is the display name shown next to presence and activity entries.
	Name string `json:"name"`

	// Email is the login email of the account.
	Email string `json:"email"`

	// Role is the platform role: "mentor", "mentee" or "admin".
	Role string `json:"role"`
}
