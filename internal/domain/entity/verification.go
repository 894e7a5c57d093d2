package entity

import "time"

// VerificationCheckEvent is a one-shot notice that an account's email has been
// confirmed. It is consumed once by the presentation layer and then cleared.
type VerificationCheckEvent struct {
	UID       string    `json:"-"`
	Email     string    `json:"-"`
	Verified  bool      `json:"verified"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
