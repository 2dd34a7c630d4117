// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogTransport writes message metadata to a logger instead of sending mail.
// It is the development transport. Bodies carry live codes and reset links,
// so they are only logged when explicitly enabled.
type LogTransport struct {
	logger      *slog.Logger
	includeBody bool
}

// LogOption customizes a LogTransport.
type LogOption func(*LogTransport)

// WithBodies makes the transport log rendered HTML bodies.
func WithBodies() LogOption {
	return func(t *LogTransport) { t.includeBody = true }
}

// NewLogTransport creates a LogTransport. A nil logger uses slog.Default.
func NewLogTransport(logger *slog.Logger, opts ...LogOption) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &LogTransport{logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Deliver logs msg and never fails.
func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	attrs := []any{
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"category", msg.Category,
	}
	if t.includeBody {
		attrs = append(attrs, "html", msg.HTML)
	}
	t.logger.InfoContext(ctx, "email delivered to log", attrs...)
	return nil
}

var _ Transport = (*LogTransport)(nil)
