package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/memory"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/refreshtokens"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// newTxDB opens an in-memory sqlite database that only hosts the
// transactions dbx.WithTx begins; the repositories themselves are in memory.
// A single connection serializes those transactions.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testEnv struct {
	db      *sql.DB
	store   *memory.Manager
	tokens  *auth.TokenManager
	hasher  *auth.PasswordHasher
	refresh *RefreshTokenService
	auth    *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTxDB(t)
	store := memory.NewManager()

	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager error: %v", err)
	}
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher error: %v", err)
	}

	refresh := NewRefreshTokenService(db, store, 15*time.Minute)
	svc := NewAuthService(db, store, tokens, hasher, refresh, []models.Role{models.RoleUser}, logging.Nop())

	return &testEnv{db: db, store: store, tokens: tokens, hasher: hasher, refresh: refresh, auth: svc}
}

// failingManager wraps the memory store and lets a test replace single
// repositories with failing ones.
type failingManager struct {
	*memory.Manager
	accounts accounts.Repository
	tokens   refreshtokens.Repository
}

func (m *failingManager) Accounts(db dbx.DBTX) accounts.Repository {
	if m.accounts != nil {
		return m.accounts
	}
	return m.Manager.Accounts(db)
}

func (m *failingManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	if m.tokens != nil {
		return m.tokens
	}
	return m.Manager.RefreshTokens(db)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type brokenTokens struct {
	refreshtokens.Repository
	createErr error
}

func (b *brokenTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	if b.createErr != nil {
		return b.createErr
	}
	return b.Repository.Create(ctx, t)
}

// brokenAccounts fails AddRole for one username.
type brokenAccounts struct {
	accounts.Repository
	failFor string
}

func (b *brokenAccounts) AddRole(ctx context.Context, username string, role models.Role) (bool, error) {
	if username == b.failFor {
		return false, errBoom{}
	}
	return b.Repository.AddRole(ctx, username, role)
}

// racingAccounts hides existing rows from the Exists checks, as a
// concurrent registration would.
type racingAccounts struct {
	accounts.Repository
}

func (racingAccounts) ExistsByUsername(context.Context, string) (bool, error) { return false, nil }
func (racingAccounts) ExistsByEmail(context.Context, string) (bool, error)    { return false, nil }
