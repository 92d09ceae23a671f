package battle

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so the gateway can map them to status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotFound
	KindAccessDenied
	KindInvalidState
	KindAlreadyFinalized
	KindAlreadyComplete
	KindRoomFull
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidState:
		return "invalid_state"
	case KindAlreadyFinalized:
		return "already_finalized"
	case KindAlreadyComplete:
		return "already_complete"
	case KindRoomFull:
		return "room_full"
	}
	return "unknown"
}

// Error is a typed domain error. Field is set for validation failures.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so callers can write errors.Is(err, battle.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAccessDenied     = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrInvalidState     = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrAlreadyFinalized = &Error{Kind: KindAlreadyFinalized, Message: "submission already finalized"}
	ErrAlreadyComplete  = &Error{Kind: KindAlreadyComplete, Message: "match already complete"}
	ErrRoomFull         = &Error{Kind: KindRoomFull, Message: "room is full"}
)

func Validation(field, msg string) error { return &Error{Kind: KindValidation, Field: field, Message: msg} }
func NotFound(msg string) error          { return &Error{Kind: KindNotFound, Message: msg} }
func AccessDenied(msg string) error      { return &Error{Kind: KindAccessDenied, Message: msg} }
func InvalidState(msg string) error      { return &Error{Kind: KindInvalidState, Message: msg} }

// KindOf extracts the domain kind from a wrapped error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
