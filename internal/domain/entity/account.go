package entity

import (
	"time"
)

// Account is the credential record used by the self-hosted identity provider.
// Passwords are stored as bcrypt hashes in PasswordHash.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	DisplayName   string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity projects the account onto the provider-facing principal.
func (a *Account) Identity() *Identity {
	return &Identity{
		UID:           a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		DisplayName:   a.DisplayName,
	}
}
