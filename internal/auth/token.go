// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultTokenTTL    = 30 * 24 * time.Hour
	DefaultTokenIssuer = "signlogin"
	MinSecretLength    = 16
)

// CodeTokenInvalidClaims marks a token whose signature is valid but whose
// registered claims (issuer, not-before, issued-at) are not acceptable.
const CodeTokenInvalidClaims = "TOKEN_INVALID_CLAIMS"

// IssuedToken is a freshly signed session token.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID ulid.ULID) (IssuedToken, error)
}

// TokenVerifier resolves a session token back to the user it was issued to.
type TokenVerifier interface {
	Verify(token string) (ulid.ULID, error)
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// TokenManager issues and verifies HS256 JWTs. Verification does no I/O.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager creates a TokenManager. An empty issuer uses DefaultTokenIssuer.
func NewTokenManager(secret []byte, ttl time.Duration, issuer string, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("AUTH_TOKEN_CONFIG_INVALID").
			With("min", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_TOKEN_CONFIG_INVALID").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}

	m := &TokenManager{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

// TTL returns the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token whose subject is the user ID.
func (m *TokenManager) Issue(userID ulid.ULID) (IssuedToken, error) {
	if userID == (ulid.ULID{}) {
		return IssuedToken{}, oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("user id is required")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return IssuedToken{}, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	// NumericDate truncates to seconds; report what the token actually carries.
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature and expiry and returns the embedded user ID.
func (m *TokenManager) Verify(token string) (ulid.ULID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ulid.ULID{}, oops.Code(CodeTokenMissing).Errorf("token is empty")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return ulid.ULID{}, classifyTokenError(err)
	}

	userID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeTokenInvalidSubject).Wrap(err)
	}
	return userID, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return oops.Code(CodeTokenMalformed).Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return oops.Code(CodeTokenSignatureInvalid).Wrap(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code(CodeTokenExpired).Wrap(err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return oops.Code(CodeTokenMalformed).Wrap(err)
	default:
		return oops.Code(CodeTokenInvalidClaims).Wrap(err)
	}
}

var (
	_ TokenIssuer   = (*TokenManager)(nil)
	_ TokenVerifier = (*TokenManager)(nil)
)
