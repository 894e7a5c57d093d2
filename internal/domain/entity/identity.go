package entity

import "strings"

// Identity is the authenticated principal as held by the identity provider.
// The session layer keeps a copy for the lifetime of a session and treats it
// as read-mostly; only ReloadIdentity and the local profile patch mutate it.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"display_name,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
}

// Clone returns a detached copy, nil-safe.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// NormalizeEmail lowercases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
