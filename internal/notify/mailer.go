// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package notify delivers account lifecycle emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/samber/oops"

	"github.com/fokushq/fokus/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message kinds. They match the template file names.
const (
	KindVerification = "verification"
	KindWelcome      = "welcome"
	KindResetRequest = "reset_request"
	KindResetSuccess = "reset_success"
)

var subjects = map[string]string{
	KindVerification: "Verify Your Email",
	KindWelcome:      "Welcome to %s",
	KindResetRequest: "Reset Your Password",
	KindResetSuccess: "Password Reset Successful",
}

var categories = map[string]string{
	KindVerification: "Email Verification",
	KindWelcome:      "Welcome",
	KindResetRequest: "Password Reset",
	KindResetSuccess: "Password Reset",
}

// Message is a rendered email ready for a Transport.
type Message struct {
	Kind     string
	To       string
	Subject  string
	Category string
	HTML     string
}

// Transport sends rendered messages.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg Message) error

// Deliver calls f.
func (f TransportFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type templateData struct {
	Company  string
	Name     string
	Code     string
	ResetURL string
	ValidFor string
}

// Mailer renders lifecycle emails and hands them to a Transport.
type Mailer struct {
	transport Transport
	company   string
	verifyTTL time.Duration
	resetTTL  time.Duration
	templates map[string]*template.Template
}

// Option customizes a Mailer.
type Option func(*Mailer)

// WithCompany sets the product name used in subjects and signatures.
func WithCompany(name string) Option {
	return func(m *Mailer) {
		if name != "" {
			m.company = name
		}
	}
}

// WithTokenLifetimes sets the lifetimes quoted in verification and reset
// emails.
func WithTokenLifetimes(verification, reset time.Duration) Option {
	return func(m *Mailer) {
		if verification > 0 {
			m.verifyTTL = verification
		}
		if reset > 0 {
			m.resetTTL = reset
		}
	}
}

// NewMailer parses the embedded templates and returns a Mailer sending
// through transport.
func NewMailer(transport Transport, opts ...Option) (*Mailer, error) {
	if transport == nil {
		return nil, oops.Code("NOTIFY_INVALID_TRANSPORT").Errorf("transport is required")
	}

	m := &Mailer{
		transport: transport,
		company:   "Fokus",
		verifyTTL: 24 * time.Hour,
		resetTTL:  time.Hour,
		templates: make(map[string]*template.Template, len(subjects)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for kind := range subjects {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+kind+".html")
		if err != nil {
			return nil, oops.Code("NOTIFY_TEMPLATE_INVALID").With("kind", kind).Wrap(err)
		}
		m.templates[kind] = tmpl
	}
	return m, nil
}

// SendVerification sends the email verification code.
func (m *Mailer) SendVerification(ctx context.Context, email, code string) error {
	return m.send(ctx, KindVerification, email, templateData{Code: code, ValidFor: humanDuration(m.verifyTTL)})
}

// SendWelcome greets a newly verified account.
func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	return m.send(ctx, KindWelcome, email, templateData{Name: name})
}

// SendResetRequest sends the password reset link.
func (m *Mailer) SendResetRequest(ctx context.Context, email, resetURL string) error {
	return m.send(ctx, KindResetRequest, email, templateData{ResetURL: resetURL, ValidFor: humanDuration(m.resetTTL)})
}

// SendResetSuccess confirms a completed password reset.
func (m *Mailer) SendResetSuccess(ctx context.Context, email string) error {
	return m.send(ctx, KindResetSuccess, email, templateData{})
}

func (m *Mailer) render(kind, to string, data templateData) (Message, error) {
	tmpl, ok := m.templates[kind]
	if !ok {
		return Message{}, oops.Code("NOTIFY_UNKNOWN_KIND").With("kind", kind).Errorf("unknown message kind %q", kind)
	}

	data.Company = m.company
	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return Message{}, oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).Wrap(err)
	}

	subject := subjects[kind]
	if kind == KindWelcome {
		subject = fmt.Sprintf(subject, m.company)
	}
	return Message{
		Kind:     kind,
		To:       to,
		Subject:  subject,
		Category: categories[kind],
		HTML:     body.String(),
	}, nil
}

func (m *Mailer) send(ctx context.Context, kind, to string, data templateData) error {
	msg, err := m.render(kind, to, data)
	if err != nil {
		return err
	}
	if err := m.transport.Deliver(ctx, msg); err != nil {
		return oops.Code("NOTIFY_DELIVERY_FAILED").With("kind", kind).Wrap(err)
	}
	return nil
}

// humanDuration renders whole hours or minutes, e.g. "24 hours", "1 hour",
// "15 minutes".
func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d.Round(time.Minute)/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var _ auth.Notifier = (*Mailer)(nil)
