package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can pick between correction,
// not-found and retry messaging without parsing text.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidFormat      Kind = "invalid_format"
	KindInvalidSchedule    Kind = "invalid_schedule"
	KindDuplicateVisit     Kind = "duplicate_visit"
	KindAlreadyEntered     Kind = "already_entered"
	KindNotYetEntered      Kind = "not_yet_entered"
	KindAlreadyExited      Kind = "already_exited"
	KindAlreadyReported    Kind = "already_reported"
	KindUserNotFound       Kind = "user_not_found"
	KindNotEnrolled        Kind = "not_enrolled"
	KindAlreadyEnrolled    Kind = "already_enrolled"
	KindInvalidCode        Kind = "invalid_code"
	KindMissingSecret      Kind = "missing_secret"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAlreadyExists      Kind = "already_exists"
	KindStorageFailure     Kind = "storage_failure"
	KindInternal           Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, ErrAlreadyEntered) holds for
// any *Error of that kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "visit record not found"}
	ErrInvalidFormat      = &Error{Kind: KindInvalidFormat, Message: "invalid format"}
	ErrInvalidSchedule    = &Error{Kind: KindInvalidSchedule, Message: "invalid schedule"}
	ErrDuplicateVisit     = &Error{Kind: KindDuplicateVisit, Message: "a visit with the same visitor, entry time and location already exists"}
	ErrAlreadyEntered     = &Error{Kind: KindAlreadyEntered, Message: "the visitor has already registered their entry"}
	ErrNotYetEntered      = &Error{Kind: KindNotYetEntered, Message: "the visitor has not registered their entry"}
	ErrAlreadyExited      = &Error{Kind: KindAlreadyExited, Message: "the visitor has already registered their exit"}
	ErrAlreadyReported    = &Error{Kind: KindAlreadyReported, Message: "the record has already been reported"}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrNotEnrolled        = &Error{Kind: KindNotEnrolled, Message: "two-factor authentication is not enabled for this user"}
	ErrAlreadyEnrolled    = &Error{Kind: KindAlreadyEnrolled, Message: "two-factor authentication is already enabled for this user"}
	ErrInvalidCode        = &Error{Kind: KindInvalidCode, Message: "incorrect code"}
	ErrMissingSecret      = &Error{Kind: KindMissingSecret, Message: "secret is required"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrStorageFailure     = &Error{Kind: KindStorageFailure, Message: "storage failure"}
)

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func storageFailure(err error) error {
	return &Error{Kind: KindStorageFailure, Message: "storage failure", Err: err}
}

// KindOf returns the kind carried by err. Errors that did not originate in
// this package are reported as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}
