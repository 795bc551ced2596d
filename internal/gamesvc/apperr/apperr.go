package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	InvalidArgument    Kind = "invalid-argument"
	NotFound           Kind = "not-found"
	FailedPrecondition Kind = "failed-precondition"
	ResourceExhausted  Kind = "resource-exhausted"
	Internal           Kind = "internal"
)

// Error is returned by every engine operation that fails for a reason the
// caller can act on.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Msg
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Unauthenticatedf(format string, args ...interface{}) *Error {
	return New(Unauthenticated, format, args...)
}

func InvalidArgumentf(format string, args ...interface{}) *Error {
	return New(InvalidArgument, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func FailedPreconditionf(format string, args ...interface{}) *Error {
	return New(FailedPrecondition, format, args...)
}

func ResourceExhaustedf(format string, args ...interface{}) *Error {
	return New(ResourceExhausted, format, args...)
}

func Internalf(format string, args ...interface{}) *Error {
	return New(Internal, format, args...)
}

// KindOf unwraps err looking for an *Error. Anything else is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the human readable part of err. Internal failures that
// are not *Error are not leaked to callers.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case ResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
