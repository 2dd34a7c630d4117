// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name), "file %s should match NNNNNN_name.(up|down).sql", name)
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}

	assert.True(t, ups["000001_accounts"])
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrationsFS_AccountSchema(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000001_accounts.up.sql")
	require.NoError(t, err)

	schema := string(sql)
	for _, column := range []string{
		"id", "email", "name", "password_hash", "verified",
		"verification_token_hash", "verification_expires_at",
		"reset_token_hash", "reset_expires_at",
		"last_login_at", "created_at", "updated_at", "version",
	} {
		assert.Regexp(t, `(?m)^\s+`+column+`\s`, schema, "column %s", column)
	}
	assert.Contains(t, schema, "UNIQUE INDEX IF NOT EXISTS idx_accounts_email_lower ON accounts (LOWER(email))")
}

func TestMigrationsFS_VerificationTokenIsUnique(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000003_unique_verification_token.up.sql")
	require.NoError(t, err)

	assert.Contains(t, string(sql), "CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_verification_token_unique")
	assert.Contains(t, string(sql), "WHERE verification_token_hash IS NOT NULL")
}
