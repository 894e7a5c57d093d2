package identity

import (
	"errors"
	"fmt"
)

// Code classifies identity provider failures.
type Code string

const (
	CodeUnknownAccount   Code = "unknown-account"
	CodeWrongCredentials Code = "wrong-credentials"
	CodeEmailInUse       Code = "email-already-in-use"
	CodeWeakPassword     Code = "weak-password"
	CodeInvalidEmail     Code = "invalid-email"
	CodeTooManyRequests  Code = "too-many-requests"
	CodeNetwork          Code = "network-request-failed"
)

// AuthError is a provider failure with a known code.
type AuthError struct {
	Code Code
	Err  error
}

func NewError(code Code, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + string(e.Code)
	}
	return fmt.Sprintf("auth: %s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches another *AuthError carrying the same code, so callers can write
// errors.Is(err, identity.ErrTooManyRequests).
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Err == nil && t.Code == e.Code
}

var (
	ErrUnknownAccount   = &AuthError{Code: CodeUnknownAccount}
	ErrWrongCredentials = &AuthError{Code: CodeWrongCredentials}
	ErrEmailInUse       = &AuthError{Code: CodeEmailInUse}
	ErrWeakPassword     = &AuthError{Code: CodeWeakPassword}
	ErrInvalidEmail     = &AuthError{Code: CodeInvalidEmail}
	ErrTooManyRequests  = &AuthError{Code: CodeTooManyRequests}
	ErrNetwork          = &AuthError{Code: CodeNetwork}
)

// CodeOf extracts the code of an AuthError anywhere in err's chain.
func CodeOf(err error) (Code, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

// Message turns a provider failure into text that can be shown to a user.
func Message(err error) string {
	code, ok := CodeOf(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch code {
	case CodeUnknownAccount:
		return "No account found with this email address."
	case CodeWrongCredentials:
		return "Incorrect email or password."
	case CodeEmailInUse:
		return "An account with this email already exists."
	case CodeWeakPassword:
		return "Password should be at least 6 characters."
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeTooManyRequests:
		return "Too many attempts. Please wait a few minutes and try again."
	case CodeNetwork:
		return "Network error. Check your connection and try again."
	}
	return "Something went wrong. Please try again."
}
