// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package account

import (
	"crypto/subtle"
	"time"

	"github.com/samber/oops"
)

// VerifyEmail moves the account to Verified when digest matches the
// outstanding, unexpired verification token. The token is cleared.
func (a Account) VerifyEmail(digest string, now time.Time) (*Account, error) {
	if !matches(a.Verification, digest, now) {
		return nil, oops.Code("ACCOUNT_TOKEN_INVALID").
			With("account_id", a.ID.String()).
			With("token", "verification").
			Wrap(ErrTokenInvalid)
	}
	a.Verified = true
	a.Verification = nil
	a.UpdatedAt = now
	return &a, nil
}

// ReissueVerification replaces any outstanding verification token.
func (a Account) ReissueVerification(token PendingToken, now time.Time) (*Account, error) {
	if a.Verified {
		return nil, oops.Code("ACCOUNT_ALREADY_VERIFIED").
			With("account_id", a.ID.String()).
			Wrap(ErrAlreadyVerified)
	}
	if err := validateToken(token); err != nil {
		return nil, err
	}
	a.Verification = &token
	a.UpdatedAt = now
	return &a, nil
}

// RequestReset enters ResetPending, overwriting any prior pending reset.
func (a Account) RequestReset(token PendingToken, now time.Time) (*Account, error) {
	if err := validateToken(token); err != nil {
		return nil, err
	}
	a.Reset = &token
	a.UpdatedAt = now
	return &a, nil
}

// CompleteReset replaces the credential and leaves ResetPending when digest
// matches the outstanding, unexpired reset token.
func (a Account) CompleteReset(digest, newPasswordHash string, now time.Time) (*Account, error) {
	if newPasswordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID").Errorf("password hash cannot be empty")
	}
	if !matches(a.Reset, digest, now) {
		return nil, oops.Code("ACCOUNT_TOKEN_INVALID").
			With("account_id", a.ID.String()).
			With("token", "reset").
			Wrap(ErrTokenInvalid)
	}
	a.PasswordHash = newPasswordHash
	a.Reset = nil
	a.UpdatedAt = now
	return &a, nil
}

// RecordLogin stamps the last-login instant. An optional upgraded hash
// replaces the stored credential in the same step.
func (a Account) RecordLogin(now time.Time, upgradedHash string) *Account {
	a.LastLoginAt = &now
	if upgradedHash != "" {
		a.PasswordHash = upgradedHash
	}
	a.UpdatedAt = now
	return &a
}

func matches(pending *PendingToken, digest string, now time.Time) bool {
	if pending == nil || digest == "" {
		return false
	}
	if pending.IsExpiredAt(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pending.Digest), []byte(digest)) == 1
}
