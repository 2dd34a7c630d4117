// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import "github.com/fokushq/fokus/pkg/errutil"

// Error codes returned by Service operations.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeStorageFailed      = "AUTH_STORAGE_FAILED"
	CodeSessionInvalid     = "SESSION_INVALID"
)

// Kind classifies a Service error for callers that translate it to a
// transport response.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInvalidCredential
	KindInvalidOrExpiredToken
	KindStorageFailure
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInvalidOrExpiredToken:
		return "invalid_token"
	case KindStorageFailure:
		return "storage_failure"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

var kindsByCode = map[string]Kind{
	CodeValidation:         KindValidation,
	CodeEmailTaken:         KindConflict,
	CodeNotFound:           KindNotFound,
	CodeInvalidCredentials: KindInvalidCredential,
	CodeInvalidToken:       KindInvalidOrExpiredToken,
	CodeStorageFailed:      KindStorageFailure,
	CodeSessionInvalid:     KindUnauthenticated,
}

// KindOf returns the kind of err, or KindUnknown for nil and uncoded errors.
func KindOf(err error) Kind {
	return kindsByCode[errutil.Code(err)]
}

// Public messages. Token messages are the same whether the token was wrong
// or expired.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidCode        = "invalid or expired verification code"
	msgInvalidResetToken  = "invalid or expired reset token"
	msgEmailTaken         = "user already exists"
	msgNotFound           = "user not found"
	msgStorageFailure     = "storage failure"
)
