// Package members stores the member records managed through the CRUD API.
package members

import (
	"context"

	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

type Repository interface {
	List(ctx context.Context, req models.PageRequest) (*models.Page, error)
	Get(ctx context.Context, id string) (*models.Member, error)
	Create(ctx context.Context, m *models.Member) (*models.Member, error)
	Update(ctx context.Context, m *models.Member) (*models.Member, error)
	Delete(ctx context.Context, id string) error
}
