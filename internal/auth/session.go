// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session configuration.
const (
	DefaultSessionTTL    = 7 * 24 * time.Hour
	DefaultSessionIssuer = "fokus"
	MinSessionSecretLen  = 32
)

// Session is a signed credential bound to one account.
type Session struct {
	Token     string
	AccountID ulid.ULID
	ExpiresAt time.Time
}

// SessionIssuer mints and resolves HS256-signed session tokens. Sessions are
// stateless: they carry the account id in a tamper-evident envelope and are
// not tracked server-side.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// SessionIssuerOption customizes a SessionIssuer.
type SessionIssuerOption func(*SessionIssuer)

// WithSessionTTL sets the session lifetime.
func WithSessionTTL(ttl time.Duration) SessionIssuerOption {
	return func(s *SessionIssuer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionIssuerName sets the "iss" claim written and required.
func WithSessionIssuerName(name string) SessionIssuerOption {
	return func(s *SessionIssuer) {
		if name != "" {
			s.issuer = name
		}
	}
}

// WithSessionClock overrides the issuer's clock.
func WithSessionClock(now func() time.Time) SessionIssuerOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionIssuer creates a SessionIssuer. The secret must be at least
// MinSessionSecretLen bytes.
func NewSessionIssuer(secret []byte, opts ...SessionIssuerOption) (*SessionIssuer, error) {
	if len(secret) < MinSessionSecretLen {
		return nil, oops.Code("SESSION_SECRET_TOO_SHORT").
			With("min", MinSessionSecretLen).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLen)
	}

	s := &SessionIssuer{
		secret: append([]byte(nil), secret...),
		issuer: DefaultSessionIssuer,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue creates a session for accountID.
func (s *SessionIssuer) Issue(accountID ulid.ULID) (*Session, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   accountID.String(),
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, oops.Code("SESSION_SIGN_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	return &Session{
		Token:     signed,
		AccountID: accountID,
		// NumericDate has second precision; report what the token carries.
		ExpiresAt: expiresAt.Truncate(time.Second),
	}, nil
}

// Resolve returns the account id a session token is bound to. Tampered,
// expired, malformed or foreign tokens fail with SESSION_INVALID.
func (s *SessionIssuer) Resolve(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Errorf("invalid or expired session")
	}

	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Errorf("invalid or expired session")
	}
	return id, nil
}
