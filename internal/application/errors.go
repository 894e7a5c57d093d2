package application

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

var (
	// ErrVerificationRequired is returned when an unverified, non-allowlisted
	// account tries to log in.
	ErrVerificationRequired = errors.New("email verification required")
	// ErrVerificationEmailNotSent is returned by Signup when the account was
	// created but the verification email could not be delivered.
	ErrVerificationEmailNotSent = errors.New("verification email not sent")
	ErrInvalidRole              = errors.New("invalid role")
	ErrNotSignedIn              = errors.New("not signed in")
)

const genericFailure = "Something went wrong. Please try again."

// OperationError carries a message safe to show to the user alongside the
// underlying cause.
type OperationError struct {
	Op      string
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	var oe *OperationError
	if errors.As(err, &oe) && oe.Message != "" {
		return oe.Message
	}
	if _, ok := identity.CodeOf(err); ok {
		return identity.Message(err)
	}
	return genericFailure
}

func authFailure(op string, err error) error {
	if _, ok := identity.CodeOf(err); ok {
		return &OperationError{Op: op, Message: identity.Message(err), Err: err}
	}
	return storeFailure(op, err)
}

func storeFailure(op string, err error) error {
	if errors.Is(err, repo.ErrUnavailable) {
		return &OperationError{Op: op, Message: "We couldn't reach the server. Check your connection and try again.", Err: err}
	}
	return &OperationError{Op: op, Message: genericFailure, Err: err}
}
