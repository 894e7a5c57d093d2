// Package policy holds the verification gate rules shared by the session
// manager and the routing decision.
package policy

import (
	"sort"
	"strings"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

// Allowlist is the set of accounts that may skip the email verification gate.
// Build it once from configuration and hand the same value to every consumer.
type Allowlist struct {
	emails map[string]struct{}
}

func NewAllowlist(emails ...string) Allowlist {
	a := Allowlist{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if n := entity.NormalizeEmail(e); n != "" {
			a.emails[n] = struct{}{}
		}
	}
	return a
}

// ParseAllowlist reads a comma-separated list.
func ParseAllowlist(csv string) Allowlist {
	return NewAllowlist(strings.Split(csv, ",")...)
}

func (a Allowlist) Contains(email string) bool {
	if len(a.emails) == 0 {
		return false
	}
	_, ok := a.emails[entity.NormalizeEmail(email)]
	return ok
}

// Bypasses reports whether id clears the gate without a verified email.
func (a Allowlist) Bypasses(id *entity.Identity) bool {
	return id != nil && a.Contains(id.Email)
}

// GateCleared reports whether id may hold an active session.
func (a Allowlist) GateCleared(id *entity.Identity) bool {
	return id != nil && (id.EmailVerified || a.Contains(id.Email))
}

func (a Allowlist) Emails() []string {
	out := make([]string, 0, len(a.emails))
	for e := range a.emails {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
