/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"mentormatch/internal/app/user"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/randx"
	"mentormatch/internal/pkg/req"
	"mentormatch/internal/pkg/resp"
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
	maxNameLength     = 50
)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SolveChallengeInput struct {
	Nonce   string `json:"nonce"`
	Counter string `json:"counter"`
}

// HandleGetChallenge issues a Proof-of-Work nonce for registration.
func HandleGetChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Challenger == nil {
			resp.RespondSuccess(w, r, map[string]any{"difficulty": 0})
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"nonce":      deps.Challenger.GenerateNonce(),
			"difficulty": deps.Challenger.Difficulty(),
		})
	}
}

// HandleSolveChallenge exchanges a solved nonce for a single-use proof token.
func HandleSolveChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Challenger == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input SolveChallengeInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, err := deps.Challenger.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			logx.Debug("PoW proof rejected", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"powToken": token})
	}
}

// HandleRegister creates an account and signs the caller in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		if deps.Challenger != nil && !deps.Challenger.ConsumeProofToken(r) {
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		email := user.NormalizeEmail(input.Email)
		if !emailRegex.MatchString(email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		if len(input.Password) > maxPasswordLength || utf8.RuneCountInString(input.Password) < minPasswordLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		if !user.IsValidRole(input.Role) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRole))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		account := &user.Account{
			Identity: user.Identity{
				ID:    randx.ID(),
				Name:  name,
				Email: email,
				Role:  input.Role,
			},
			PasswordHash: string(hashedPassword),
			CreatedAt:    time.Now().UTC(),
		}

		if err := deps.Users.Create(r.Context(), account); err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				logx.Warn("registration conflict: email already exists")
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		respondWithToken(w, r, deps, account.Identity)
	}
}

// HandleLogin verifies credentials and issues an identity token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Users.GetByEmail(r.Context(), user.NormalizeEmail(input.Email))
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				logx.Error(err, "login: user fetch failed")
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		respondWithToken(w, r, deps, account.Identity)
	}
}

// HandleMe returns the caller's current account identity.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)

		account, err := deps.Users.GetByID(r.Context(), payload.ID)
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				logx.Error(err, "me: user fetch failed", "user_id", payload.ID)
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": account.Identity})
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, deps *AppDeps, identity user.Identity) {
	token, err := jwt.GenerateToken(identity.Payload(), deps.Config.JWTSecret, jwt.IdentityExpiration)
	if err != nil {
		logx.Error(err, "jwt generation failed", "user_id", identity.ID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	resp.RespondSuccess(w, r, map[string]any{
		"token": token,
		"user":  identity,
	})
}
