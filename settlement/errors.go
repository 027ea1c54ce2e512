package settlement

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrGateway          = errors.New("payment gateway failure")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Error is a settlement failure of one of the kinds above. Message is safe to
// show to the caller; Err keeps the underlying cause, if any.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind error, err error, message string) error {
	return &Error{Kind: kind, Message: message, Err: err}
}
