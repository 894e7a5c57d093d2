package entity

import (
	"errors"
	"strings"
)

// Role is the access level stored on a Profile.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// DefaultRole is assigned whenever the Profile cannot be read.
const DefaultRole = RoleCustomer

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts "admin" or "customer" (case-insensitive). Empty means default.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultRole, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCustomer:
		return RoleCustomer, nil
	}
	return "", ErrUnknownRole
}

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleCustomer }
