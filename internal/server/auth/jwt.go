// Package auth contains the stateless pieces of the session core: access
// token signing and validation, password hashing, the request identity and
// the operation-to-role policy.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 key size in bytes (256 bits).
const MinSecretLength = 32

// Claims carries the subject username plus issued-at and expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager fails with common.ErrWeakSecret when secret is shorter
// than MinSecretLength, so a misconfigured server refuses to start.
func NewTokenManager(secret []byte, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", common.ErrWeakSecret, len(secret), MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", ttl)
	}
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime given to new tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for username valid from now until now+TTL.
func (m *TokenManager) Issue(username string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate reports whether token parses, carries a valid signature and has
// not expired. It never returns an error.
func (m *TokenManager) Validate(token string) bool {
	_, err := m.ExtractSubject(token)
	return err == nil
}

// ExtractSubject returns the username the token was issued for.
// It fails with common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for anything else that does not verify.
func (m *TokenManager) ExtractSubject(tokenString string) (string, error) {
	if tokenString == "" {
		return "", common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
