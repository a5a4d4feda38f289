package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
)

// sortColumns whitelists ORDER BY targets; values are interpolated into SQL.
var sortColumns = map[models.SortField]string{
	models.SortByName:        "name",
	models.SortByEmail:       "email",
	models.SortByPhoneNumber: "phone_number",
}

const memberColumns = `id, name, email, phone_number, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, req models.PageRequest) (*models.Page, error) {
	column, ok := sortColumns[req.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort field %q", common.ErrValidation, req.SortBy)
	}
	direction := "DESC"
	if req.Ascending {
		direction = "ASC"
	}

	page := &models.Page{Page: req.Page, Size: req.Size, Content: []models.Member{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&page.TotalElements); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM members
		ORDER BY %s %s, id
		LIMIT $1 OFFSET $2
	`, memberColumns, column, direction)

	rows, err := r.db.QueryContext(ctx, query, req.Size, req.Page*req.Size)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.PhoneNumber, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		page.Content = append(page.Content, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return page, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.Name, &m.Email, &m.PhoneNumber, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	query := `
		INSERT INTO members (name, email, phone_number)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, m.Name, m.Email, m.PhoneNumber).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Member) (*models.Member, error) {
	query := `
		UPDATE members
		SET name = $2, email = $3, phone_number = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, m.ID, m.Name, m.Email, m.PhoneNumber).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, translate(err)
	}
	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func translate(err error) error {
	if _, ok := dbx.UniqueViolation(err); ok {
		return common.ErrMemberEmailTaken
	}
	return fmt.Errorf("db error: %w", err)
}
