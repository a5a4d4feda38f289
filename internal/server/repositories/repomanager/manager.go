package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/members"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a DB handle (pool or
// transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Members(db dbx.DBTX) members.Repository
}
