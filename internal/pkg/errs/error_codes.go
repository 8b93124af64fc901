/*
Package errs provides the coded application errors shared by the REST API and
the realtime layer.

Codes are grouped by range so clients can branch on them without parsing
messages: 1xxx request handling, 2xxx domain objects, 3xxx identity and
admission, 5xxx internal failures.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the caller exceeded its request or event rate.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Sessions, Activity, Notifications and Files
const (
	// ErrSessionIDInvalid indicates a missing or malformed mentoring session id.
	ErrSessionIDInvalid = 2101

	// ErrNotificationNotFound indicates the notification does not exist for this user.
	ErrNotificationNotFound = 2301

	// ErrEventMalformed marks an inbound realtime event that could not be routed.
	// It is only used for logging and metric labels; the sender is never told.
	ErrEventMalformed = 2401

	// ErrFileTypeInvalid indicates an attachment with a disallowed name or MIME type.
	ErrFileTypeInvalid = 2501

	// ErrFileSizeTooLarge indicates an attachment above the size limit.
	ErrFileSizeTooLarge = 2502

	// ErrFileStorageDisabled indicates that no object storage is configured.
	ErrFileStorageDisabled = 2503
)

// 3xxx: Identity, Admission and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the submitted proof is wrong or its nonce expired.
	ErrPowChallengeInvalid = 3002

	// ErrAuthTokenMissing indicates a connection or request without a bearer credential.
	ErrAuthTokenMissing = 3101

	// ErrAuthTokenInvalid indicates a malformed, forged or expired bearer credential.
	ErrAuthTokenInvalid = 3102

	// ErrAuthVerification indicates that the credential could not be checked at all.
	ErrAuthVerification = 3103

	// ErrUnauthorized indicates an endpoint that requires an authenticated caller.
	ErrUnauthorized = 3104

	// ErrAlreadyLoggedIn indicates a login or registration attempt with a valid identity token attached.
	ErrAlreadyLoggedIn = 3201

	// ErrInvalidEmail indicates a registration email that is not acceptable.
	ErrInvalidEmail = 3202

	// ErrInvalidPassword indicates a password outside the accepted length.
	ErrInvalidPassword = 3203

	// ErrInvalidRole indicates an unknown platform role.
	ErrInvalidRole = 3204

	// ErrUserAlreadyExists indicates a registration for an email that is taken.
	ErrUserAlreadyExists = 3205

	// ErrInvalidCredentials indicates a login with a wrong email or password.
	ErrInvalidCredentials = 3206
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object storage call failed.
	ErrFileStorageFailed = 5001

	// ErrRealtimeUnavailable indicates that the realtime hub is shut down.
	ErrRealtimeUnavailable = 5002
)
