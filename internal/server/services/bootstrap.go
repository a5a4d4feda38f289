package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/repomanager"
)

// Bootstrap runs the idempotent startup steps that follow migrations.
type Bootstrap struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	admins      []string
	logger      logging.Logger
}

func NewBootstrap(db *sql.DB, m repomanager.RepositoryManager, admins []string, logger logging.Logger) *Bootstrap {
	return &Bootstrap{db: db, repomanager: m, admins: admins, logger: logger.With("module", "bootstrap")}
}

// Run grants ADMIN to every configured bootstrap username that exists and
// lacks it, in one transaction: either every grant applies or none does.
// Running it again changes nothing.
func (b *Bootstrap) Run(ctx context.Context) error {
	var granted []string
	err := dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := b.repomanager.Accounts(tx)
		for _, username := range b.admins {
			changed, err := repo.AddRole(ctx, username, models.RoleAdmin)
			if err != nil {
				return fmt.Errorf("granting admin to %q: %w", username, err)
			}
			if changed {
				granted = append(granted, username)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, username := range granted {
		b.logger.Info(ctx, "granted admin role", "username", username)
	}
	return nil
}
