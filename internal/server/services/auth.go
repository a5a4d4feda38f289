package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/repomanager"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Roles        []models.Role
}

// TokenPair bundles a short-lived access token and the refresh token it was
// obtained with.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService provides authentication-related operations:
// - Register: create accounts with a hashed password
// - Login: verify credentials, mint an access token, rotate the refresh token
// - Refresh: exchange a live refresh token for a new access token
// - Logout: drop every refresh token of the token's owner
type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	tokens       *auth.TokenManager
	hasher       *auth.PasswordHasher
	refresh      *RefreshTokenService
	defaultRoles []models.Role
	logger       logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenManager,
	hasher *auth.PasswordHasher, refresh *RefreshTokenService, defaultRoles []models.Role,
	logger logging.Logger) *AuthService {
	return &AuthService{
		db:           db,
		repomanager:  m,
		tokens:       tokens,
		hasher:       hasher,
		refresh:      refresh,
		defaultRoles: defaultRoles,
		logger:       logger.With("module", "auth_service"),
	}
}

// Login accepts either an email or a username as identifier. Email is tried
// first. Unknown accounts and wrong passwords both yield
// common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	account, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			s.logger.Info(ctx, "login rejected", "identifier", identifier, "reason", "unknown account")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error looking up account: %w", err)
	}

	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Info(ctx, "login rejected", "username", account.UserName, "reason", "bad password")
		}
		return nil, err
	}

	access, err := s.tokens.Issue(account.UserName)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	rt, err := s.refresh.CreateFor(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "username", account.UserName)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: rt.Token,
		Username:     account.UserName,
		Roles:        account.Roles,
	}, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.FindByEmail(ctx, identifier)
	if err == nil || !errors.Is(err, common.ErrorNotFound) {
		return account, err
	}
	return repo.FindByUsername(ctx, identifier)
}

// Register creates an account with the configured default roles and returns
// its id. Existing usernames and emails are rejected up front; the store's
// unique constraints catch concurrent registrations that pass the checks.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return "", err
	}

	repo := s.repomanager.Accounts(s.db)

	exists, err := repo.ExistsByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("error checking username: %w", err)
	}
	if exists {
		return "", common.ErrDuplicateUsername
	}

	exists, err = repo.ExistsByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("error checking email: %w", err)
	}
	if exists {
		return "", common.ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	account, err := repo.Create(ctx, &models.Account{
		UserName:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        s.defaultRoles,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) || errors.Is(err, common.ErrDuplicateEmail) {
			return "", err
		}
		return "", fmt.Errorf("error creating account: %w", err)
	}

	s.logger.Info(ctx, "user registered", "username", username, "roles", models.RoleNames(account.Roles))
	return account.ID, nil
}

func validateRegistration(username, email, password string) error {
	var v violations
	switch {
	case username == "":
		v.add("username is required")
	case !lengthBetween(username, 3, 20):
		v.add("username must be between 3 and 20 characters")
	case !usernamePattern.MatchString(username):
		v.add("username may contain only letters, digits, dots, dashes and underscores")
	}
	switch {
	case email == "":
		v.add("email is required")
	case len(email) > 50 || !validEmail(email):
		v.add("email must be a well-formed address")
	}
	switch {
	case password == "":
		v.add("password is required")
	case len(password) > 72:
		v.add("password must be at most 72 bytes")
	}
	return v.err()
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated and is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rt, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	rt, err = s.refresh.VerifyNotExpired(ctx, rt)
	if err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("error looking up token owner: %w", err)
	}

	access, err := s.tokens.Issue(account.UserName)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: rt.Token}, nil
}

// Logout resolves the owner of refreshToken and deletes all of its refresh
// tokens. Access tokens already issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	rt, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	n, err := s.refresh.DeleteByAccountID(ctx, rt.AccountID)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user logged out", "account_id", rt.AccountID, "tokens_deleted", n)
	return nil
}

// Identify resolves the subject of a valid access token into an Identity
// carrying the account's current roles.
func (s *AuthService) Identify(ctx context.Context, accessToken string) (*auth.Identity, error) {
	username, err := s.tokens.ExtractSubject(accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error resolving identity: %w", err)
	}

	return &auth.Identity{ID: account.ID, Username: account.UserName, Roles: account.Roles}, nil
}
