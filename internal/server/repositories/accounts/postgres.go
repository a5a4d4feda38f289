package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_key"
)

// Roles travel as a comma separated string so the queries work with any
// database/sql driver, not only ones that understand TEXT[].
const selectAccount = `
		SELECT id, username, email, password_hash, array_to_string(roles, ','), created_at
		FROM accounts
	`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (username, email, password_hash, roles)
		VALUES ($1, $2, $3, string_to_array($4, ','))
		RETURNING id, created_at
	`
	roles := strings.Join(models.RoleNames(account.Roles), ",")
	err := r.db.QueryRowContext(ctx, query, account.UserName, account.Email, account.PasswordHash, roles).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case usernameConstraint:
				return nil, common.ErrDuplicateUsername
			case emailConstraint:
				return nil, common.ErrDuplicateEmail
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, selectAccount+`WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, selectAccount+`WHERE username = $1`, username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, selectAccount+`WHERE email = $1`, email)
}

func (r *PostgresRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email)
}

func (r *PostgresRepository) AddRole(ctx context.Context, username string, role models.Role) (bool, error) {
	query := `
		UPDATE accounts
		SET roles = array_append(roles, $2)
		WHERE username = $1 AND NOT ($2 = ANY (roles))
	`
	res, err := r.db.ExecContext(ctx, query, username, string(role))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	var roles string
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&a.ID, &a.UserName, &a.Email, &a.PasswordHash, &roles, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.Roles = splitRoles(roles)
	return a, nil
}

func (r *PostgresRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func splitRoles(s string) []models.Role {
	if s == "" {
		return []models.Role{}
	}
	return models.ParseRoles(strings.Split(s, ","))
}
