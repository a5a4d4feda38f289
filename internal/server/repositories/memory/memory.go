// Package memory is a process-local RepositoryManager. It backs the
// server's "memory" database mode and the service and HTTP tests.
// Transactions are not isolated: writes apply immediately whatever handle
// the repository was vended for.
package memory

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/dbx"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/members"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

// Manager holds every table in maps guarded by one mutex.
type Manager struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	tokens   map[string]*models.RefreshToken
	members  map[string]*models.Member
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		accounts: make(map[string]*models.Account),
		tokens:   make(map[string]*models.RefreshToken),
		members:  make(map[string]*models.Member),
		now:      time.Now,
	}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Accounts(dbx.DBTX) accounts.Repository           { return (*accountRepo)(m) }
func (m *Manager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return (*tokenRepo)(m) }
func (m *Manager) Members(dbx.DBTX) members.Repository             { return (*memberRepo)(m) }

// TokensFor returns copies of every refresh token owned by accountID.
func (m *Manager) TokensFor(accountID string) []models.RefreshToken {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.RefreshToken
	for _, t := range m.tokens {
		if t.AccountID == accountID {
			out = append(out, *t)
		}
	}
	return out
}

// AccountCount is the number of stored accounts.
func (m *Manager) AccountCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

type accountRepo Manager

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.Roles = slices.Clone(a.Roles)
	return &c
}

func (r *accountRepo) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.UserName == account.UserName {
			return nil, common.ErrDuplicateUsername
		}
		if a.Email == account.Email {
			return nil, common.ErrDuplicateEmail
		}
	}

	account.ID = uuid.NewString()
	account.CreatedAt = r.now()
	r.accounts[account.ID] = copyAccount(account)
	return account, nil
}

func (r *accountRepo) find(match func(*models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *accountRepo) FindByID(_ context.Context, id string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ID == id })
}

func (r *accountRepo) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.UserName == username })
}

func (r *accountRepo) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email })
}

func (r *accountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, nil
}

func (r *accountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *accountRepo) AddRole(_ context.Context, username string, role models.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.UserName == username {
			if a.HasRole(role) {
				return false, nil
			}
			a.Roles = append(a.Roles, role)
			return true, nil
		}
	}
	return false, nil
}

type tokenRepo Manager

func (r *tokenRepo) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, t := range r.tokens {
		if t.AccountID == token.AccountID {
			delete(r.tokens, k)
		}
	}

	token.ID = uuid.NewString()
	token.CreatedAt = r.now()
	c := *token
	r.tokens[token.Token] = &c
	return nil
}

func (r *tokenRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *tokenRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *tokenRepo) DeleteByAccountID(_ context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, t := range r.tokens {
		if t.AccountID == accountID {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

type memberRepo Manager

func (r *memberRepo) List(_ context.Context, req models.PageRequest) (*models.Page, error) {
	key, err := sortKey(req.SortBy)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]models.Member, 0, len(r.members))
	for _, m := range r.members {
		all = append(all, *m)
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b models.Member) int {
		c := cmp.Compare(key(&a), key(&b))
		if !req.Ascending {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})

	page := &models.Page{Page: req.Page, Size: req.Size, TotalElements: int64(len(all)), Content: []models.Member{}}
	start := req.Page * req.Size
	if start < len(all) {
		end := min(start+req.Size, len(all))
		page.Content = all[start:end]
	}
	return page, nil
}

func sortKey(f models.SortField) (func(*models.Member) string, error) {
	switch f {
	case models.SortByName:
		return func(m *models.Member) string { return m.Name }, nil
	case models.SortByEmail:
		return func(m *models.Member) string { return m.Email }, nil
	case models.SortByPhoneNumber:
		return func(m *models.Member) string { return m.PhoneNumber }, nil
	}
	return nil, common.ErrValidation
}

func (r *memberRepo) Get(_ context.Context, id string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *m
	return &c, nil
}

func (r *memberRepo) emailTaken(email, exceptID string) bool {
	for _, m := range r.members {
		if m.Email == email && m.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *memberRepo) Create(_ context.Context, m *models.Member) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(m.Email, "") {
		return nil, common.ErrMemberEmailTaken
	}
	m.ID = uuid.NewString()
	m.CreatedAt = r.now()
	m.UpdatedAt = m.CreatedAt
	c := *m
	r.members[m.ID] = &c
	return m, nil
}

func (r *memberRepo) Update(_ context.Context, m *models.Member) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.members[m.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.emailTaken(m.Email, m.ID) {
		return nil, common.ErrMemberEmailTaken
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = r.now()
	c := *m
	r.members[m.ID] = &c
	return m, nil
}

func (r *memberRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.members, id)
	return nil
}
