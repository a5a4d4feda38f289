package auth

import (
	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

// Operation names a protected API action.
type Operation string

const (
	OpAuthMe        Operation = "auth.me"
	OpMembersList   Operation = "members.list"
	OpMembersGet    Operation = "members.get"
	OpMembersCreate Operation = "members.create"
	OpMembersUpdate Operation = "members.update"
	OpMembersDelete Operation = "members.delete"
)

// Policy maps an operation to the roles allowed to perform it. Holding any
// one of the listed roles is enough; an empty list admits every
// authenticated caller. Operations missing from the table are denied.
type Policy map[Operation][]models.Role

// DefaultPolicy is the role table of the member API.
func DefaultPolicy() Policy {
	return Policy{
		OpAuthMe:        {},
		OpMembersList:   {models.RoleUser},
		OpMembersGet:    {models.RoleUser},
		OpMembersCreate: {models.RoleAdmin},
		OpMembersUpdate: {models.RoleAdmin},
		OpMembersDelete: {models.RoleAdmin},
	}
}

// Authorize returns common.ErrorUnauthorized without an identity and
// common.ErrorForbidden when the identity lacks every required role.
func (p Policy) Authorize(op Operation, id *Identity) error {
	if id == nil {
		return common.ErrorUnauthorized
	}

	required, ok := p[op]
	if !ok {
		return common.ErrorForbidden
	}
	if len(required) == 0 {
		return nil
	}
	for _, r := range required {
		if id.HasRole(r) {
			return nil
		}
	}
	return common.ErrorForbidden
}
