package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrMismatch     = errors.New("mismatch")
	ErrExpired      = errors.New("expired")
	ErrNotVerified  = errors.New("not verified")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// Error carries a client-facing message alongside one of the sentinel kinds.
// errors.Is(err, ErrConflict) etc. still works through Unwrap.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an *Error of the given kind.
func NewError(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}
