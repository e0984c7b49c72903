package authx

import (
	"errors"
	"fmt"
)

// ErrorCode represents authx error categories.
type ErrorCode string

const (
	ErrCodeMalformedToken   ErrorCode = "malformed_token"
	ErrCodeNotYetValid      ErrorCode = "token_not_yet_valid"
	ErrCodeExpired          ErrorCode = "token_expired"
	ErrCodeInvalidPayload   ErrorCode = "invalid_payload"
	ErrCodeUnauthorized     ErrorCode = "unauthorized"
	ErrCodeInvalidResponse  ErrorCode = "invalid_response"
	ErrCodeUnexpectedStatus ErrorCode = "unexpected_status"
	ErrCodeCommunication    ErrorCode = "communication_failure"

	// Raised by the adapter layer, never by the decode or check pipeline.
	ErrCodeMissingToken     ErrorCode = "missing_token"
	ErrCodePermissionDenied ErrorCode = "permission_denied"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMalformedToken:   "Malformed token",
	ErrCodeNotYetValid:      "Token not yet valid",
	ErrCodeExpired:          "Token expired",
	ErrCodeInvalidPayload:   "Token payload invalid",
	ErrCodeUnauthorized:     "Auth Center rejected client credentials",
	ErrCodeInvalidResponse:  "Invalid response format from Auth Center",
	ErrCodeUnexpectedStatus: "Unexpected response from Auth Center",
	ErrCodeCommunication:    "Failed to communicate with Auth Center",
	ErrCodeMissingToken:     "No authentication token provided",
	ErrCodePermissionDenied: "Permission denied",
}

// Error wraps authx errors with a stable code and message.
// StatusCode is only set for ErrCodeUnexpectedStatus.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.StatusCode != 0 {
		base = fmt.Sprintf("%s: %d", base, e.StatusCode)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

func newStatusError(status int) error {
	return &Error{
		Code:       ErrCodeUnexpectedStatus,
		Message:    errorMessages[ErrCodeUnexpectedStatus],
		StatusCode: status,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsUpstreamFailure reports whether err means the Auth Center could not give an answer,
// as opposed to the caller failing authentication.
func IsUpstreamFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeCommunication, ErrCodeUnexpectedStatus:
		return true
	}
	return false
}
