package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/kitchensink/internal/server/migrations"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/members"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/refreshtokens"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)

	var m RepositoryManager = NewPostgresRepositoryManager()

	if _, ok := m.Accounts(db).(*accounts.PostgresRepository); !ok {
		t.Fatal("Accounts() is not the postgres repository")
	}
	if _, ok := m.RefreshTokens(db).(*refreshtokens.PostgresRepository); !ok {
		t.Fatal("RefreshTokens() is not the postgres repository")
	}
	if _, ok := m.Members(db).(*members.PostgresRepository); !ok {
		t.Fatal("Members() is not the postgres repository")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEmbeddedMigrations_DeclareUniqueConstraints(t *testing.T) {
	files, err := fs.Glob(migrations.Migrations, "*.sql")
	if err != nil || len(files) != 4 {
		t.Fatalf("expected 4 migrations, got %v (%v)", files, err)
	}

	constraints := map[string][]string{
		"00001_accounts.sql":                        {"accounts_username_key", "accounts_email_key"},
		"00004_refresh_tokens_one_per_account.sql": {"refresh_tokens_account_id_key UNIQUE (account_id)"},
	}
	for file, want := range constraints {
		body, err := fs.ReadFile(migrations.Migrations, file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		for _, c := range want {
			if !strings.Contains(string(body), c) {
				t.Fatalf("%s lacks %s", file, c)
			}
		}
	}
}
