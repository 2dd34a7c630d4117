// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned when no account matches a lookup.
	ErrNotFound = errors.New("account not found")

	// ErrConflict is returned by Save when the email is already taken or the
	// stored version no longer matches the one that was read.
	ErrConflict = errors.New("account conflict")

	// ErrVerificationTokenTaken is returned by Save when another account
	// already holds the same verification token digest. The caller draws a
	// new code and saves again.
	ErrVerificationTokenTaken = errors.New("verification token already in use")

	// ErrTokenInvalid is returned when a token is missing, mismatched or expired.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrAlreadyVerified is returned when a verification code is requested
	// for an account that is already verified.
	ErrAlreadyVerified = errors.New("account already verified")
)

// Repository manages account persistence.
//
// Save is the only write. A read followed by Save is atomic per account:
// if another writer saved the same account in between, Save returns
// ErrConflict and nothing is written.
type Repository interface {
	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByVerificationToken retrieves the account whose outstanding
	// verification token has the given digest and is unexpired at now.
	GetByVerificationToken(ctx context.Context, digest string, now time.Time) (*Account, error)

	// GetByResetToken retrieves the account whose pending reset token has the
	// given digest and is unexpired at now.
	GetByResetToken(ctx context.Context, digest string, now time.Time) (*Account, error)

	// Save inserts an account with Version 0 or updates one whose stored
	// Version equals account.Version. On success account.Version is bumped.
	// Verification token digests are unique across accounts, expired or not.
	Save(ctx context.Context, account *Account) error
}
