package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind int

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// grpcKinds classifies Firestore status codes. Aborted covers transactions that lost a
// contention race; FailedPrecondition covers update preconditions such as LastUpdateTime.
var grpcKinds = map[codes.Code]errorKind{
	codes.NotFound:           kindNotFound,
	codes.AlreadyExists:      kindConflict,
	codes.FailedPrecondition: kindConflict,
	codes.Aborted:            kindConflict,
	codes.Unavailable:        kindUnavailable,
	codes.ResourceExhausted:  kindUnavailable,
	codes.Internal:           kindUnavailable,
	codes.DeadlineExceeded:   kindUnavailable,
}

// Error implements repositories.RepositoryError for the Firestore repositories.
type Error struct {
	op   string
	err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// WrapError annotates a Firestore error with its repository category. Cancellation is returned
// as the plain context error so callers can tell a client hang-up from a backend failure.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.op == "" {
			existing.op = op
		}
		return existing
	}
	return &Error{op: op, err: err, kind: grpcKinds[code]}
}

// ConflictError reports a stale version or exhausted precondition detected inside repository
// code.
func ConflictError(op string, err error) error {
	return &Error{op: op, err: err, kind: kindConflict}
}

// NotFoundError reports a missing document detected inside repository code.
func NotFoundError(op string, err error) error {
	return &Error{op: op, err: err, kind: kindNotFound}
}
