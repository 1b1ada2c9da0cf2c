// Package apperr defines the error kinds returned by the account and echo
// services. Transports translate a Kind into a status code exactly once.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindServerError Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindNotYetEligible
	KindEmailDeliveryFailed

	// Refinements of BadRequest/NotFound raised by the OTP pipeline and the
	// echo lifecycle.
	KindExpired
	KindInvalidOtp
	KindCorrupt
	KindMismatch
	KindTooShort
	KindMissingMedia
)

var kindNames = map[Kind]string{
	KindServerError:         "ServerError",
	KindBadRequest:          "BadRequest",
	KindUnauthorized:        "Unauthorized",
	KindForbidden:           "Forbidden",
	KindNotFound:            "NotFound",
	KindConflict:            "Conflict",
	KindNotYetEligible:      "NotYetEligible",
	KindEmailDeliveryFailed: "EmailDeliveryFailed",
	KindExpired:             "Expired",
	KindInvalidOtp:          "InvalidOtp",
	KindCorrupt:             "Corrupt",
	KindMismatch:            "Mismatch",
	KindTooShort:            "TooShort",
	KindMissingMedia:        "MissingMedia",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error carries a Kind, a client-safe message and an optional cause that is
// only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an unexpected failure as ServerError.
func Internal(err error) *Error {
	return &Error{Kind: KindServerError, Message: "An internal error occurred", Err: err}
}

// KindOf reports the Kind of err, or KindServerError when err does not carry one.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServerError
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
