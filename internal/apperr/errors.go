package apperr

import (
	"errors"
	"fmt"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind, so sentinel values declared
// with New work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Cause == nil
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

var (
	ErrAlreadyActivated = New(KindAlreadyActivated, "user already activated")
	ErrNotActivated     = New(KindNotActivated, "user not activated")
	ErrBanned           = New(KindBanned, "user is banned")
	ErrAuthExpired      = New(KindAuthExpired, "external session expired")
)

func CodeCollision(code string, users int) error {
	return New(KindCodeCollision, fmt.Sprintf("activation code %q matches %d users", code, users))
}

func UnresolvableLink(link string) error {
	return New(KindUnresolvableLink, fmt.Sprintf("unresolvable link %q", link))
}

func FetchFailed(cause error) error {
	return Wrap(KindFetchFailed, "fetching media", cause)
}

func CompressionFailed(cause error) error {
	return Wrap(KindCompressionFailed, "compressing media", cause)
}

func Persistence(message string, cause error) error {
	return Wrap(KindPersistence, message, cause)
}

func AuthExpired(cause error) error {
	return Wrap(KindAuthExpired, "external session expired", cause)
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage converts any error into text safe to show to a chat user.
func UserMessage(err error) string {
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return genericMessage
}
