package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind sentinels. Match with errors.Is(err, apperr.ErrUpstream) etc.
var (
	ErrValidation         = errors.New("validation error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstream           = errors.New("upstream error")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnavailable        = errors.New("unavailable")
	ErrInvalidResponse    = errors.New("invalid response")
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Kind error
	Op   string
	Msg  string
	// Status is the dependency's HTTP status when known.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality. An invalid response is also an upstream error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrInvalidResponse && target == ErrUpstream
}

func newErr(kind error, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func Validation(op, msg string) *Error {
	return newErr(ErrValidation, op, msg, nil)
}

func StorageUnavailable(op string, cause error) *Error {
	return newErr(ErrStorageUnavailable, op, "storage unavailable", cause)
}

func Upstream(op, msg string, cause error) *Error {
	return newErr(ErrUpstream, op, msg, cause)
}

// UpstreamStatus is Upstream with the dependency's HTTP status attached.
func UpstreamStatus(op string, status int, cause error) *Error {
	e := newErr(ErrUpstream, op, fmt.Sprintf("http %d", status), cause)
	e.Status = status
	return e
}

// WrapUpstream wraps cause as an upstream error, keeping any status it carries.
func WrapUpstream(op, msg string, cause error) *Error {
	e := newErr(ErrUpstream, op, msg, cause)
	e.Status = StatusOf(cause)
	return e
}

func RateLimited(op string, cause error) *Error {
	return newErr(ErrRateLimited, op, "rate limit exceeded", cause)
}

func Unavailable(op string, cause error) *Error {
	return newErr(ErrUnavailable, op, "temporarily unavailable", cause)
}

func InvalidResponse(op, msg string, cause error) *Error {
	return newErr(ErrInvalidResponse, op, msg, cause)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// HTTPStatus maps an error to the status code surfaced to API callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstream):
		if s := StatusOf(err); s >= 400 && s <= 599 {
			return s
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
