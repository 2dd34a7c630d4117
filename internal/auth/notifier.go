// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package auth

import (
	"context"
	"time"
)

// Notifier delivers account lifecycle messages. Each call may fail
// independently; a failure never undoes a state change already saved.
type Notifier interface {
	SendVerification(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendResetRequest(ctx context.Context, email, resetURL string) error
	SendResetSuccess(ctx context.Context, email string) error
}

// Notification kinds, used in logs, metrics and warnings.
const (
	NotifyVerification = "verification"
	NotifyWelcome      = "welcome"
	NotifyResetRequest = "reset_request"
	NotifyResetSuccess = "reset_success"
)

// Metrics receives operation outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordOperation(operation, outcome string)
	RecordNotificationFailure(kind string)
	ObservePasswordHash(op string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, string)            {}
func (noopMetrics) RecordNotificationFailure(string)          {}
func (noopMetrics) ObservePasswordHash(string, time.Duration) {}
