package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountRoles(t *testing.T) {
	a := &Account{Roles: ParseRoles([]string{"USER", "ADMIN", "USER"})}

	assert.Equal(t, []Role{RoleUser, RoleAdmin}, a.Roles)
	assert.True(t, a.HasRole(RoleAdmin))
	assert.False(t, a.HasRole(Role("OWNER")))

	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("OWNER").Valid())
	assert.False(t, Role("user").Valid())
	assert.Equal(t, []string{"USER", "ADMIN"}, RoleNames(a.Roles))
}

func TestRefreshTokenExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&RefreshToken{Expires: now.Add(time.Second)}).Expired(now))
	assert.True(t, (&RefreshToken{Expires: now}).Expired(now))
	assert.True(t, (&RefreshToken{Expires: now.Add(-time.Second)}).Expired(now))
}

func TestPageTotals(t *testing.T) {
	p := &Page{Page: 0, Size: 10, TotalElements: 21}
	assert.Equal(t, 3, p.TotalPages())
	assert.False(t, p.Last())

	p.Page = 2
	assert.True(t, p.Last())

	empty := &Page{Size: 10}
	assert.Equal(t, 0, empty.TotalPages())
	assert.True(t, empty.Last())
}
