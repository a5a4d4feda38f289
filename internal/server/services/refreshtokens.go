// Package services contains server-side business logic: the authentication
// flows, refresh token lifecycle, member management and startup bootstrap.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/repomanager"
)

// RefreshTokenService owns the refresh token lifecycle. It keeps at most
// one live token per account.
type RefreshTokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validity    time.Duration
	now         func() time.Time
}

func NewRefreshTokenService(db *sql.DB, m repomanager.RepositoryManager, validity time.Duration) *RefreshTokenService {
	return &RefreshTokenService{db: db, repomanager: m, validity: validity, now: time.Now}
}

// CreateFor issues a fresh random token for accountID. The store keeps one
// token per account, so any previous token stops resolving once this one is
// stored, even when logins for the same account race.
func (s *RefreshTokenService) CreateFor(ctx context.Context, accountID string) (*models.RefreshToken, error) {
	value, err := common.MakeRandHexString(common.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	token := &models.RefreshToken{
		AccountID: accountID,
		Token:     value,
		Expires:   s.now().Add(s.validity),
	}

	if err := s.repomanager.RefreshTokens(s.db).Create(ctx, token); err != nil {
		return nil, fmt.Errorf("error creating refresh token: %w", err)
	}

	return token, nil
}

// FindByToken resolves a token string, returning
// common.ErrRefreshTokenNotFound when it is unknown.
func (s *RefreshTokenService) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, common.ErrRefreshTokenNotFound
	}
	rt, err := s.repomanager.RefreshTokens(s.db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	return rt, nil
}

// VerifyNotExpired returns rt unchanged while it is live. An expired token
// is deleted and common.ErrRefreshTokenExpired is returned.
func (s *RefreshTokenService) VerifyNotExpired(ctx context.Context, rt *models.RefreshToken) (*models.RefreshToken, error) {
	if !rt.Expired(s.now()) {
		return rt, nil
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, rt.Token); err != nil {
		return nil, fmt.Errorf("error deleting expired refresh token: %w", err)
	}
	return nil, common.ErrRefreshTokenExpired
}

// DeleteByAccountID removes every token owned by accountID.
func (s *RefreshTokenService) DeleteByAccountID(ctx context.Context, accountID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteByAccountID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("error deleting refresh tokens: %w", err)
	}
	return n, nil
}
