// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"time"

	"github.com/fokushq/fokus/internal/account"
)

// Notification reports the delivery of the message an operation triggered.
// A non-nil Err means the state change succeeded but the message was not
// delivered.
type Notification struct {
	Kind string
	Err  error
}

// Degraded reports whether delivery failed.
func (n Notification) Degraded() bool {
	return n.Err != nil
}

// Warning returns a caller-safe description of a failed delivery, or "".
func (n Notification) Warning() string {
	if n.Err == nil {
		return ""
	}
	switch n.Kind {
	case NotifyVerification:
		return "verification email could not be sent"
	case NotifyWelcome:
		return "welcome email could not be sent"
	case NotifyResetRequest:
		return "password reset email could not be sent"
	case NotifyResetSuccess:
		return "password reset confirmation email could not be sent"
	default:
		return "notification could not be sent"
	}
}

// RegisterResult is returned by Register.
type RegisterResult struct {
	Account      account.View
	Session      *Session
	Notification Notification
}

// VerifyEmailResult is returned by VerifyEmail.
type VerifyEmailResult struct {
	Account      account.View
	Notification Notification
}

// LoginResult is returned by Login.
type LoginResult struct {
	Account account.View
	Session *Session
}

// LogoutResult tells the transport what to do with the caller's credential.
type LogoutResult struct {
	ClearSession bool
}

// ForgotPasswordResult is returned by ForgotPassword.
type ForgotPasswordResult struct {
	ExpiresAt    time.Time
	Notification Notification
}

// ResetPasswordResult is returned by ResetPassword.
type ResetPasswordResult struct {
	Account      account.View
	Notification Notification
}

// CheckSessionResult is returned by CheckSession.
type CheckSessionResult struct {
	Account account.View
}

// ResendVerificationResult is returned by ResendVerification.
type ResendVerificationResult struct {
	ExpiresAt    time.Time
	Notification Notification
}
