// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package postgres provides the PostgreSQL implementation of account.Repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fokushq/fokus/internal/account"
)

// Querier is the subset of *pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAccount = `
		SELECT id, email, name, password_hash, verified,
		       verification_token_hash, verification_expires_at,
		       reset_token_hash, reset_expires_at,
		       last_login_at, created_at, updated_at, version
		FROM accounts`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`
		WHERE id = $1
	`, id.String())

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`
		WHERE LOWER(email) = LOWER($1)
	`, account.NormalizeEmail(email))

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return acct, nil
}

// GetByVerificationToken retrieves the account holding an unexpired
// verification token with the given digest.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, digest string, now time.Time) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`
		WHERE verification_token_hash = $1 AND verification_expires_at > $2
		ORDER BY verification_expires_at DESC
		LIMIT 1
	`, digest, now)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_TOKEN_FAILED").
			With("operation", "get account by verification token").
			Wrap(err)
	}
	return acct, nil
}

// GetByResetToken retrieves the account holding an unexpired reset token
// with the given digest.
func (r *AccountRepository) GetByResetToken(ctx context.Context, digest string, now time.Time) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`
		WHERE reset_token_hash = $1 AND reset_expires_at > $2
	`, digest, now)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_TOKEN_FAILED").
			With("operation", "get account by reset token").
			Wrap(err)
	}
	return acct, nil
}

// Save inserts a new account (Version 0) or updates an existing one when
// the stored version still equals acct.Version.
func (r *AccountRepository) Save(ctx context.Context, acct *account.Account) error {
	if acct.Version == 0 {
		return r.insert(ctx, acct)
	}
	return r.update(ctx, acct)
}

func (r *AccountRepository) insert(ctx context.Context, acct *account.Account) error {
	verifyHash, verifyExpires := tokenColumns(acct.Verification)
	resetHash, resetExpires := tokenColumns(acct.Reset)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, name, password_hash, verified,
			verification_token_hash, verification_expires_at,
			reset_token_hash, reset_expires_at,
			last_login_at, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
	`,
		acct.ID.String(),
		account.NormalizeEmail(acct.Email),
		acct.Name,
		acct.PasswordHash,
		acct.Verified,
		verifyHash,
		verifyExpires,
		resetHash,
		resetExpires,
		acct.LastLoginAt,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if uerr := uniqueViolation(err, acct); uerr != nil {
		return uerr
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", acct.ID.String()).
			Wrap(err)
	}

	acct.Version = 1
	return nil
}

func (r *AccountRepository) update(ctx context.Context, acct *account.Account) error {
	verifyHash, verifyExpires := tokenColumns(acct.Verification)
	resetHash, resetExpires := tokenColumns(acct.Reset)

	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			name = $3,
			password_hash = $4,
			verified = $5,
			verification_token_hash = $6,
			verification_expires_at = $7,
			reset_token_hash = $8,
			reset_expires_at = $9,
			last_login_at = $10,
			updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $12
	`,
		acct.ID.String(),
		account.NormalizeEmail(acct.Email),
		acct.Name,
		acct.PasswordHash,
		acct.Verified,
		verifyHash,
		verifyExpires,
		resetHash,
		resetExpires,
		acct.LastLoginAt,
		acct.UpdatedAt,
		acct.Version,
	)
	if uerr := uniqueViolation(err, acct); uerr != nil {
		return uerr
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Either the row is gone or another writer bumped the version first.
		return oops.Code("ACCOUNT_STALE").
			With("id", acct.ID.String()).
			With("expected_version", acct.Version).
			Wrap(account.ErrConflict)
	}

	acct.Version++
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr         string
		email         string
		name          string
		passwordHash  string
		verified      bool
		verifyHash    *string
		verifyExpires *time.Time
		resetHash     *string
		resetExpires  *time.Time
		lastLoginAt   *time.Time
		createdAt     time.Time
		updatedAt     time.Time
		version       int64
	)

	err := row.Scan(
		&idStr,
		&email,
		&name,
		&passwordHash,
		&verified,
		&verifyHash,
		&verifyExpires,
		&resetHash,
		&resetExpires,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &account.Account{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Verified:     verified,
		Verification: pendingToken(verifyHash, verifyExpires),
		Reset:        pendingToken(resetHash, resetExpires),
		LastLoginAt:  lastLoginAt,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		Version:      version,
	}, nil
}

func tokenColumns(p *account.PendingToken) (*string, *time.Time) {
	if p == nil {
		return nil, nil
	}
	digest, expires := p.Digest, p.ExpiresAt
	return &digest, &expires
}

// pendingToken rebuilds a token from its column pair. A half-set pair is
// treated as absent; the schema's CHECK constraints prevent writing one.
func pendingToken(digest *string, expires *time.Time) *account.PendingToken {
	if digest == nil || expires == nil {
		return nil
	}
	return &account.PendingToken{Digest: *digest, ExpiresAt: *expires}
}

// verificationTokenIndex is the unique index on verification token digests.
const verificationTokenIndex = "idx_accounts_verification_token_unique"

// uniqueViolation translates a unique violation into the matching sentinel,
// or returns nil for any other error.
func uniqueViolation(err error, acct *account.Account) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == verificationTokenIndex {
		return oops.Code("ACCOUNT_VERIFICATION_TOKEN_TAKEN").
			With("id", acct.ID.String()).
			Wrap(account.ErrVerificationTokenTaken)
	}
	return oops.Code("ACCOUNT_EMAIL_TAKEN").
		With("id", acct.ID.String()).
		With("constraint", pgErr.ConstraintName).
		Wrap(account.ErrConflict)
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
