// Package refreshtokens declares the server-side repository contract for
// refresh tokens and its PostgreSQL implementation.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

// Repository stores opaque refresh tokens, at most one per account.
type Repository interface {
	// Create stores token as the account's only refresh token, replacing any
	// previous one, and fills in its ID and CreatedAt. Concurrent calls for
	// one account leave exactly one token: the last write wins.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns common.ErrorNotFound when the token string is unknown.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a token by its string. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByAccountID removes every token owned by accountID and returns how many.
	DeleteByAccountID(ctx context.Context, accountID string) (int64, error)
}
