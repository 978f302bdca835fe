package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures.
type Kind int

const (
	KindTransport Kind = iota
	KindAuth
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("rejected by server")
	ErrTransport    = errors.New("transport failure")
)

// Error is returned by every Client call.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindAuth
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindTransport
	}
}
