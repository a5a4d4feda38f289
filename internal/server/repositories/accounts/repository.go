// Package accounts declares the credential store contract and its
// PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

// Repository is the credential store. Username and email uniqueness is
// enforced by the store; Create reports violations as
// common.ErrDuplicateUsername / common.ErrDuplicateEmail.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// Find* return common.ErrorNotFound when no account matches.
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// AddRole grants role to the named account if it lacks it. It reports
	// whether a row changed, so repeated calls are harmless.
	AddRole(ctx context.Context, username string, role models.Role) (bool, error)
}
