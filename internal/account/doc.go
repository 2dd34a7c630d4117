// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package account holds the account record and its lifecycle.
//
// An account moves along two independent axes:
//   - verification: Unverified -> Verified (one-way)
//   - password reset: NoResetPending -> ResetPending -> NoResetPending (cyclic)
//
// Transitions are methods on Account that return a new value rather than
// mutating the receiver. Callers persist the returned value through a
// Repository. Accounts should be created with New; direct struct
// initialization bypasses validation.
package account
