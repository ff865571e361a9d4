// Package apperr defines the error taxonomy shared by the HTTP layer and the
// domain services. Handlers map a Kind to an HTTP status; the two Forbidden
// cases carry distinct messages so callers can tell "needs subscription"
// apart from "not your resource".
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindMalformedEvent
	KindSignatureInvalid
	KindStorageUnavailable
	KindGatewayUnavailable
)

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Msg: "not signed in"}

	// Forbidden variants, deliberately distinct.
	ErrPremiumRequired = &Error{Kind: KindForbidden, Msg: "premium subscription required"}
	ErrNotBoardOwner   = &Error{Kind: KindForbidden, Msg: "not the owner"}

	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrMalformedEvent     = &Error{Kind: KindMalformedEvent, Msg: "malformed billing event"}
	ErrSignatureInvalid   = &Error{Kind: KindSignatureInvalid, Msg: "signature verification failed"}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Msg: "storage unavailable"}
	ErrGatewayUnavailable = &Error{Kind: KindGatewayUnavailable, Msg: "payment gateway unavailable"}
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and message so wrapped instances compare equal to the
// package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// Validation builds a field-level validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Wrap attaches a cause to a sentinel without losing its identity.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

// KindOf extracts the Kind from err, KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindMalformedEvent, KindSignatureInvalid:
		return http.StatusBadRequest
	case KindStorageUnavailable, KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
