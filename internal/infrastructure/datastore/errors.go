package datastore

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

var (
	// ErrTransient matches failures worth retrying: network, unavailable, timeouts.
	ErrTransient = repo.ErrUnavailable
	// ErrPermanent matches every other failure.
	ErrPermanent = errors.New("datastore: permanent failure")

	ErrInvalidKey = errors.New("datastore: collection and id are required")
)

// StoreError is returned by every Store operation that fails.
type StoreError struct {
	Op         string
	Collection string
	ID         string
	Attempts   int
	Transient  bool
	Err        error
}

func (e *StoreError) Error() string {
	target := e.Collection
	if e.ID != "" {
		target += "/" + e.ID
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("datastore: %s %s: %v (after %d attempts)", e.Op, target, e.Err, e.Attempts)
	}
	return fmt.Sprintf("datastore: %s %s: %v", e.Op, target, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Transient
	case ErrPermanent:
		return !e.Transient
	}
	return false
}

type transientError struct{ err error }

func (e *transientError) Error() string        { return e.err.Error() }
func (e *transientError) Unwrap() error        { return e.err }
func (e *transientError) Is(target error) bool { return target == ErrTransient }

// MarkTransient lets a backend flag its own retryable failures.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient is the default failure classifier.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return true
		}
	}
	return false
}
