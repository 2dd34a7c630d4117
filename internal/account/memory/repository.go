// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package memory provides an in-process account repository for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fokushq/fokus/internal/account"
)

// Repository implements account.Repository in memory. Reads and writes
// hand out copies, so callers never share state with the store.
type Repository struct {
	mu       sync.RWMutex
	accounts map[ulid.ULID]*account.Account
	byEmail  map[string]ulid.ULID
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[ulid.ULID]*account.Account),
		byEmail:  make(map[string]ulid.ULID),
	}
}

// GetByID retrieves an account by ID.
func (r *Repository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return clone(acct), nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *Repository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	return clone(r.accounts[id]), nil
}

// GetByVerificationToken retrieves the account holding an unexpired
// verification token with the given digest.
func (r *Repository) GetByVerificationToken(_ context.Context, digest string, now time.Time) (*account.Account, error) {
	return r.findByToken(digest, now, func(a *account.Account) *account.PendingToken { return a.Verification })
}

// GetByResetToken retrieves the account holding an unexpired reset token
// with the given digest.
func (r *Repository) GetByResetToken(_ context.Context, digest string, now time.Time) (*account.Account, error) {
	return r.findByToken(digest, now, func(a *account.Account) *account.PendingToken { return a.Reset })
}

// Save inserts or version-checks and updates an account.
func (r *Repository) Save(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := account.NormalizeEmail(acct.Email)
	if owner, taken := r.byEmail[email]; taken && owner != acct.ID {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").With("id", acct.ID.String()).Wrap(account.ErrConflict)
	}

	if acct.Verification != nil {
		for id, other := range r.accounts {
			if id != acct.ID && other.Verification != nil && other.Verification.Digest == acct.Verification.Digest {
				return oops.Code("ACCOUNT_VERIFICATION_TOKEN_TAKEN").
					With("id", acct.ID.String()).
					Wrap(account.ErrVerificationTokenTaken)
			}
		}
	}

	stored, exists := r.accounts[acct.ID]
	switch {
	case acct.Version == 0 && exists:
		return oops.Code("ACCOUNT_EXISTS").With("id", acct.ID.String()).Wrap(account.ErrConflict)
	case acct.Version != 0 && !exists:
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", acct.ID.String()).Wrap(account.ErrNotFound)
	case exists && stored.Version != acct.Version:
		return oops.Code("ACCOUNT_STALE").
			With("id", acct.ID.String()).
			With("expected_version", acct.Version).
			With("stored_version", stored.Version).
			Wrap(account.ErrConflict)
	}

	if exists && stored.Email != email {
		delete(r.byEmail, stored.Email)
	}

	acct.Version++
	saved := clone(acct)
	saved.Email = email
	r.accounts[acct.ID] = saved
	r.byEmail[email] = acct.ID
	return nil
}

// Len returns the number of stored accounts.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

func (r *Repository) findByToken(digest string, now time.Time, field func(*account.Account) *account.PendingToken) (*account.Account, error) {
	if digest == "" {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *account.Account
	for _, acct := range r.accounts {
		tok := field(acct)
		if tok == nil || tok.Digest != digest || tok.IsExpiredAt(now) {
			continue
		}
		// Most recently issued token wins on the (negligible) chance of a collision.
		if found == nil || field(found).ExpiresAt.Before(tok.ExpiresAt) {
			found = acct
		}
	}
	if found == nil {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	return clone(found), nil
}

func clone(a *account.Account) *account.Account {
	c := *a
	if a.Verification != nil {
		v := *a.Verification
		c.Verification = &v
	}
	if a.Reset != nil {
		r := *a.Reset
		c.Reset = &r
	}
	if a.LastLoginAt != nil {
		l := *a.LastLoginAt
		c.LastLoginAt = &l
	}
	return &c
}

// Compile-time interface check.
var _ account.Repository = (*Repository)(nil)
