// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/samber/oops"

	"github.com/fokushq/fokus/internal/account"
)

// Token configuration.
const (
	VerificationCodeDigits = 6
	VerificationCodeExpiry = 24 * time.Hour

	ResetTokenBytes  = 32 // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour
)

var verificationCodeSpace = big.NewInt(1_000_000) // 10^VerificationCodeDigits

// IssuedToken is a freshly minted single-use token. Value goes to the user;
// only the digest is stored.
type IssuedToken struct {
	Value     string
	Digest    string
	ExpiresAt time.Time
}

// Pending returns the stored form of the token.
func (t IssuedToken) Pending() account.PendingToken {
	return account.PendingToken{Digest: t.Digest, ExpiresAt: t.ExpiresAt}
}

// TokenIssuer mints verification codes and reset tokens.
type TokenIssuer struct {
	random io.Reader
	now    func() time.Time
}

// TokenIssuerOption customizes a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the issuer's clock.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithTokenRandom overrides the randomness source. It must be
// cryptographically secure outside of tests.
func WithTokenRandom(r io.Reader) TokenIssuerOption {
	return func(i *TokenIssuer) {
		if r != nil {
			i.random = r
		}
	}
}

// NewTokenIssuer creates a TokenIssuer backed by crypto/rand.
func NewTokenIssuer(opts ...TokenIssuerOption) *TokenIssuer {
	i := &TokenIssuer{random: rand.Reader, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueVerification creates a 6-digit code, uniform over 000000-999999,
// valid for 24 hours.
func (i *TokenIssuer) IssueVerification() (IssuedToken, error) {
	n, err := rand.Int(i.random, verificationCodeSpace)
	if err != nil {
		return IssuedToken{}, oops.Code("VERIFICATION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}

	code := fmt.Sprintf("%0*d", VerificationCodeDigits, n.Int64())
	return IssuedToken{
		Value:     code,
		Digest:    DigestToken(code),
		ExpiresAt: i.now().Add(VerificationCodeExpiry),
	}, nil
}

// IssueReset creates a 256-bit hex token valid for one hour.
func (i *TokenIssuer) IssueReset() (IssuedToken, error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(i.random, tokenBytes); err != nil {
		return IssuedToken{}, oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("operation", "read random bytes").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}

	token := hex.EncodeToString(tokenBytes)
	return IssuedToken{
		Value:     token,
		Digest:    DigestToken(token),
		ExpiresAt: i.now().Add(ResetTokenExpiry),
	}, nil
}

// DigestToken computes the SHA256 hex digest under which a token is stored.
func DigestToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
