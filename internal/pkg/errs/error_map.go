package errs

import "net/http"

// errorMap holds the template for every application error code.
// Status defaults to 200 when left zero, matching the `{code,message}` envelope
// convention where the business code carries the failure.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Malformed JSON body.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrSessionIDInvalid:     {Code: ErrSessionIDInvalid, Message: "Invalid session id.", Status: http.StatusBadRequest},
	ErrNotificationNotFound: {Code: ErrNotificationNotFound, Message: "Notification not found.", Status: http.StatusNotFound},
	ErrEventMalformed:       {Code: ErrEventMalformed, Message: "Malformed realtime event."},
	ErrFileTypeInvalid:      {Code: ErrFileTypeInvalid, Message: "This file type is not allowed.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:     {Code: ErrFileSizeTooLarge, Message: "File is too large (max %d MB).", Status: http.StatusBadRequest},
	ErrFileStorageDisabled:  {Code: ErrFileStorageDisabled, Message: "File sharing is not enabled on this server.", Status: http.StatusServiceUnavailable},

	// 3xxx
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again.", Status: http.StatusForbidden},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again.", Status: http.StatusForbidden},
	ErrAuthTokenMissing:     {Code: ErrAuthTokenMissing, Message: "Authentication token missing", Status: http.StatusUnauthorized},
	ErrAuthTokenInvalid:     {Code: ErrAuthTokenInvalid, Message: "Invalid authentication token", Status: http.StatusUnauthorized},
	ErrAuthVerification:     {Code: ErrAuthVerification, Message: "Authentication verification error", Status: http.StatusUnauthorized},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrAlreadyLoggedIn:      {Code: ErrAlreadyLoggedIn, Message: "You are already signed in.", Status: http.StatusConflict},
	ErrInvalidEmail:         {Code: ErrInvalidEmail, Message: "Invalid email address.", Status: http.StatusBadRequest},
	ErrInvalidPassword:      {Code: ErrInvalidPassword, Message: "Password must be between 6 and 72 characters.", Status: http.StatusBadRequest},
	ErrInvalidRole:          {Code: ErrInvalidRole, Message: "Role must be mentor or mentee.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:    {Code: ErrUserAlreadyExists, Message: "An account with this email already exists.", Status: http.StatusConflict},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},

	// 5xxx
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed:   {Code: ErrFileStorageFailed, Message: "File storage request failed. Please try again.", Status: http.StatusBadGateway},
	ErrRealtimeUnavailable: {Code: ErrRealtimeUnavailable, Message: "Realtime service is unavailable.", Status: http.StatusServiceUnavailable},
}
