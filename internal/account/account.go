// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package account

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// VerificationState is the position of an account on the verification axis.
type VerificationState string

// Verification axis states.
const (
	Unverified VerificationState = "unverified"
	Verified   VerificationState = "verified"
)

// ResetState is the position of an account on the password reset axis.
type ResetState string

// Reset axis states.
const (
	NoResetPending ResetState = "none"
	ResetPending   ResetState = "pending"
)

// PendingToken is an outstanding single-use token. The digest and expiry
// live in one value so they are always stored and cleared together.
type PendingToken struct {
	Digest    string
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the token is no longer usable at t.
func (p PendingToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}

// Account is a registered identity with its credential and lifecycle state.
type Account struct {
	ID           ulid.ULID
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	Verification *PendingToken // nil unless a verification code is outstanding
	Reset        *PendingToken // nil unless a password reset is pending
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Version is bumped by the repository on every save. Zero means the
	// account has never been persisted.
	Version int64
}

// NewParams carries the inputs for New.
type NewParams struct {
	Email        string
	Name         string
	PasswordHash string
	Verification PendingToken
}

// New creates an unverified account holding the given verification token.
func New(p NewParams, now time.Time) (*Account, error) {
	email := NormalizeEmail(p.Email)
	name := strings.TrimSpace(p.Name)

	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("email cannot be empty")
	}
	if name == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("name cannot be empty")
	}
	if p.PasswordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("password hash cannot be empty")
	}
	if err := validateToken(p.Verification); err != nil {
		return nil, err
	}

	verification := p.Verification
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		Name:         name,
		PasswordHash: p.PasswordHash,
		Verification: &verification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerificationState reports the verification axis state.
func (a *Account) VerificationState() VerificationState {
	if a.Verified {
		return Verified
	}
	return Unverified
}

// ResetState reports the reset axis state.
func (a *Account) ResetState() ResetState {
	if a.Reset != nil {
		return ResetPending
	}
	return NoResetPending
}

// View returns the redacted projection of the account.
func (a *Account) View() View {
	v := View{
		ID:           a.ID.String(),
		Email:        a.Email,
		Name:         a.Name,
		IsVerified:   a.Verified,
		ResetPending: a.Reset != nil,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.Verification != nil {
		expires := a.Verification.ExpiresAt
		v.VerificationExpiresAt = &expires
	}
	if a.LastLoginAt != nil {
		last := *a.LastLoginAt
		v.LastLoginAt = &last
	}
	return v
}

// View is what callers outside the core see of an account. It never carries
// the password hash or token digests.
type View struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	IsVerified            bool       `json:"isVerified"`
	VerificationExpiresAt *time.Time `json:"verificationExpiresAt,omitempty"`
	ResetPending          bool       `json:"resetPending"`
	LastLoginAt           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func validateToken(t PendingToken) error {
	if t.Digest == "" {
		return oops.Code("ACCOUNT_INVALID").Errorf("token digest cannot be empty")
	}
	if t.ExpiresAt.IsZero() {
		return oops.Code("ACCOUNT_INVALID").Errorf("token expiry cannot be zero")
	}
	return nil
}
