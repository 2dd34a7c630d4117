// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package auth implements the Fokus account lifecycle: registration, email
// verification, login, password reset and session checks.
//
// # Primitives
//
// The building blocks are usable on their own:
//   - PasswordHasher / HashPool - argon2id hashing on a bounded pool
//   - TokenIssuer - verification codes and reset tokens, stored as digests
//   - SessionIssuer - signed, stateless session tokens
//
// # Service
//
// Service orchestrates the primitives against an account.Repository and a
// Notifier. Every operation returns a result or an oops error whose code
// maps to a Kind via KindOf. Storage details are logged, never returned.
//
// Notification failures do not fail an operation. They are reported on the
// result's Notification.
package auth
