// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fokushq/fokus/pkg/errutil"
)

type captureTransport struct {
	sent []Message
	err  error
}

func (c *captureTransport) Deliver(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newTestMailer(t *testing.T, opts ...Option) (*Mailer, *captureTransport) {
	t.Helper()
	transport := &captureTransport{}
	m, err := NewMailer(transport, opts...)
	require.NoError(t, err)
	return m, transport
}

func TestNewMailer_RequiresTransport(t *testing.T) {
	_, err := NewMailer(nil)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_TRANSPORT")
}

func TestMailer_SendVerification(t *testing.T) {
	m, transport := newTestMailer(t)

	require.NoError(t, m.SendVerification(context.Background(), "ada@example.com", "042917"))

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, KindVerification, msg.Kind)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Verify Your Email", msg.Subject)
	assert.Equal(t, "Email Verification", msg.Category)
	assert.Contains(t, msg.HTML, "042917")
	assert.Contains(t, msg.HTML, "24 hours")
	assert.Contains(t, msg.HTML, "Your Fokus Team")
}

func TestMailer_SendWelcome(t *testing.T) {
	m, transport := newTestMailer(t, WithCompany("Acme"))

	require.NoError(t, m.SendWelcome(context.Background(), "ada@example.com", "<Ada>"))

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, "Welcome to Acme", msg.Subject)
	assert.Contains(t, msg.HTML, "&lt;Ada&gt;", "names are HTML-escaped")
	assert.NotContains(t, msg.HTML, "<Ada>")
}

func TestMailer_SendResetRequest(t *testing.T) {
	m, transport := newTestMailer(t, WithTokenLifetimes(0, 15*time.Minute))
	link := "https://app.fokus.test/reset-password/abc123"

	require.NoError(t, m.SendResetRequest(context.Background(), "ada@example.com", link))

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, "Reset Your Password", msg.Subject)
	assert.Contains(t, msg.HTML, `href="`+link+`"`)
	assert.Contains(t, msg.HTML, "15 minutes")
}

func TestMailer_SendResetSuccess(t *testing.T) {
	m, transport := newTestMailer(t)

	require.NoError(t, m.SendResetSuccess(context.Background(), "ada@example.com"))

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "Password Reset Successful", transport.sent[0].Subject)
	assert.Equal(t, "Password Reset", transport.sent[0].Category)
}

func TestMailer_DeliveryFailure(t *testing.T) {
	m, transport := newTestMailer(t)
	transport.err = errors.New("relay down")

	err := m.SendWelcome(context.Background(), "ada@example.com", "Ada")

	errutil.AssertErrorCode(t, err, "NOTIFY_DELIVERY_FAILED")
	errutil.AssertErrorContext(t, err, "kind", KindWelcome)
}

func TestMailer_UnknownKind(t *testing.T) {
	m, _ := newTestMailer(t)

	_, err := m.render("newsletter", "ada@example.com", templateData{})

	errutil.AssertErrorCode(t, err, "NOTIFY_UNKNOWN_KIND")
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "24 hours"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "90 minutes"},
		{time.Minute, "1 minute"},
		{15 * time.Minute, "15 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, humanDuration(tt.in))
		})
	}
}
