package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mentormatch/internal/pkg/logx"
)

// CustomError is the coded error type used across the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int `json:"code"`

	// Message is the user-facing description.
	Message string `json:"message"`

	// Status is the HTTP status used when the error is written as a response.
	Status int `json:"-"`
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target carries the same business code.
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError builds a *CustomError from a registered code. Printf-style details
// are applied to messages containing a verb; for ErrUnknown a leading error
// detail is logged instead. Unregistered codes collapse to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d", code),
			"Unknown error code requested",
			"requested_code", code,
		)
		template = errorMap[ErrUnknown]
	}

	customErr := template
	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case len(details) == 0:
	case customErr.Code == ErrUnknown:
		if cause, ok := details[0].(error); ok {
			logx.Error(cause, "Handling ErrUnknown with underlying error")
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("Error details ignored: message template has no verbs", "code", code)
	}

	return &customErr
}

// From converts any error into a *CustomError, wrapping unknown errors as ErrUnknown.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return NewError(ErrUnknown, err)
}
