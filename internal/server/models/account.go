// Package models holds the persistent records shared by repositories and
// services.
package models

import (
	"slices"
	"time"
)

// Role is a coarse-grained permission tag.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the roles the access policy knows.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a registered identity. PasswordHash is a bcrypt hash; the
// plaintext password is never stored.
type Account struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// HasRole reports whether the account carries role.
func (a *Account) HasRole(role Role) bool {
	return slices.Contains(a.Roles, role)
}

// RoleNames returns roles as plain strings, in stored order.
func RoleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// ParseRoles converts role names to Roles, dropping duplicates.
func ParseRoles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		r := Role(n)
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
