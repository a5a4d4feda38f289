package auth

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	ID       string
	Username string
	Roles    []models.Role
}

func (i *Identity) HasRole(role models.Role) bool {
	return slices.Contains(i.Roles, role)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
