// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package notify

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	gomail "github.com/wneessen/go-mail"
)

// Default SMTP retry policy and per-attempt bound.
const (
	DefaultSMTPAttempts = 3
	DefaultSMTPBackoff  = 200 * time.Millisecond
	DefaultSMTPTimeout  = 10 * time.Second
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Attempts uint64
	Backoff  time.Duration
	// Timeout bounds one attempt from dial to QUIT. The context deadline
	// wins when it is earlier.
	Timeout time.Duration
}

// mailSender is the part of *gomail.Client a delivery attempt uses.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPTransport delivers messages through an SMTP relay.
type SMTPTransport struct {
	cfg       SMTPConfig
	addr      string
	newSender func(deadline time.Time) (mailSender, error)
	now       func() time.Time
}

// NewSMTPTransport validates cfg and creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	if err := gomail.NewMsg().From(cfg.From); err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("from", cfg.From).Wrap(err)
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultSMTPAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultSMTPBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}

	t := &SMTPTransport{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		now:  time.Now,
	}
	t.newSender = t.client
	return t, nil
}

// client builds a go-mail client whose connection never outlives deadline.
func (t *SMTPTransport) client(deadline time.Time) (mailSender, error) {
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	opts := []gomail.Option{
		gomail.WithPort(t.cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			bounded := &boundedConn{Conn: conn, limit: deadline}
			if err := bounded.SetDeadline(time.Time{}); err != nil {
				_ = conn.Close() //nolint:errcheck // deadline error takes precedence
				return nil, err
			}
			return bounded, nil
		}),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(t.cfg.Password),
		)
	}
	client, err := gomail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("addr", t.addr).Wrap(err)
	}
	return client, nil
}

// Deliver sends msg, retrying transient failures with exponential backoff.
// Each attempt ends by the earlier of the context deadline and the
// configured timeout. Permanent (5xx) replies are returned without retrying.
func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	m, err := t.compose(msg)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(t.cfg.Attempts-1, retry.NewExponential(t.cfg.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		deadline := time.Now().Add(t.cfg.Timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		attemptCtx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()

		sender, err := t.newSender(deadline)
		if err != nil {
			return err
		}
		sendErr := sender.DialAndSendWithContext(attemptCtx, m)
		if sendErr == nil || isPermanent(sendErr) {
			return sendErr
		}
		return retry.RetryableError(sendErr)
	})
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").
			With("kind", msg.Kind).
			With("addr", t.addr).
			Wrap(err)
	}
	return nil
}

// compose builds the outgoing message. go-mail handles header encoding and
// the quoted-printable body.
func (t *SMTPTransport) compose(msg Message) (*gomail.Msg, error) {
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return nil, oops.Code("SMTP_INVALID_HEADER").With("kind", msg.Kind).Errorf("subject contains a line break")
	}

	m := gomail.NewMsg()
	if err := m.From(t.cfg.From); err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("from", t.cfg.From).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, oops.Code("SMTP_INVALID_RECIPIENT").With("kind", msg.Kind).Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(t.now().UTC())
	m.SetMessageIDWithValue(ulid.Make().String() + "@" + messageIDDomain(t.cfg.From))
	if msg.Category != "" {
		m.SetGenHeader(gomail.Header("X-Category"), msg.Category)
	}
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}

func messageIDDomain(from string) string {
	from = strings.TrimSuffix(strings.TrimSpace(from), ">")
	if _, domain, ok := strings.Cut(from, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}

// isPermanent reports a 5xx rejection of the envelope or the data.
func isPermanent(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 500
	}
	var sendErr *gomail.SendError
	if !errors.As(err, &sendErr) {
		return false
	}
	switch sendErr.Reason {
	case gomail.ErrSMTPMailFrom, gomail.ErrSMTPRcptTo, gomail.ErrSMTPData, gomail.ErrSMTPDataClose:
		return !sendErr.IsTemp()
	}
	return false
}

// boundedConn clamps every deadline the SMTP client sets to limit, so no
// read or write on the connection can block past it.
type boundedConn struct {
	net.Conn
	limit time.Time
}

func (c *boundedConn) clamp(t time.Time) time.Time {
	if t.IsZero() || t.After(c.limit) {
		return c.limit
	}
	return t
}

func (c *boundedConn) SetDeadline(t time.Time) error {
	return c.Conn.SetDeadline(c.clamp(t))
}

func (c *boundedConn) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(c.clamp(t))
}

func (c *boundedConn) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(c.clamp(t))
}

var _ Transport = (*SMTPTransport)(nil)
