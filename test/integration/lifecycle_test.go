// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fokushq/fokus/internal/account/postgres"
	"github.com/fokushq/fokus/internal/auth"
	"github.com/fokushq/fokus/internal/notify"
)

var (
	codeInMail = regexp.MustCompile(`>(\d{6})<`)
	linkInMail = regexp.MustCompile(`href="([^"]+)"`)
)

// outbox records every delivered message. failing makes Deliver return an
// error for the named kind.
type outbox struct {
	mu      sync.Mutex
	sent    []notify.Message
	failing string
}

func (o *outbox) Deliver(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if msg.Kind == o.failing {
		return errors.New("relay unavailable")
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last(kind string) notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Kind == kind {
			return o.sent[i]
		}
	}
	Fail("no " + kind + " message sent")
	return notify.Message{}
}

var _ = Describe("Account lifecycle", func() {
	var (
		svc *auth.Service
		box *outbox
	)

	BeforeEach(func() {
		_, err := env.pool.Exec(env.ctx, "TRUNCATE accounts")
		Expect(err).NotTo(HaveOccurred())

		box = &outbox{}
		mailer, err := notify.NewMailer(box)
		Expect(err).NotTo(HaveOccurred())
		hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1})
		Expect(err).NotTo(HaveOccurred())
		sessions, err := auth.NewSessionIssuer([]byte("0123456789abcdef0123456789abcdef"))
		Expect(err).NotTo(HaveOccurred())

		svc, err = auth.NewService(auth.Deps{
			Accounts: postgres.NewAccountRepository(env.pool),
			Hasher:   auth.NewHashPool(hasher, 4),
			Tokens:   auth.NewTokenIssuer(),
			Sessions: sessions,
			Notifier: mailer,
		}, auth.WithResetURLBase("http://client.test"))
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(email string) *auth.RegisterResult {
		res, err := svc.Register(env.ctx, auth.RegisterRequest{Email: email, Password: "correct horse", Name: "Ada"})
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	verificationCode := func() string {
		match := codeInMail.FindStringSubmatch(box.last(notify.KindVerification).HTML)
		Expect(match).To(HaveLen(2))
		return match[1]
	}

	It("registers, verifies, resets and logs in", func() {
		reg := register("Ada@Example.com")
		Expect(reg.Account.Email).To(Equal("ada@example.com"))
		Expect(reg.Notification.Degraded()).To(BeFalse())

		checked, err := svc.CheckSession(env.ctx, reg.Session.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(checked.Account.ID).To(Equal(reg.Account.ID))

		verified, err := svc.VerifyEmail(env.ctx, auth.VerifyEmailRequest{Code: verificationCode()})
		Expect(err).NotTo(HaveOccurred())
		Expect(verified.Account.IsVerified).To(BeTrue())
		box.last(notify.KindWelcome)

		_, err = svc.ForgotPassword(env.ctx, auth.ForgotPasswordRequest{Email: "ada@example.com"})
		Expect(err).NotTo(HaveOccurred())
		link := linkInMail.FindStringSubmatch(box.last(notify.KindResetRequest).HTML)
		Expect(link).To(HaveLen(2))
		resetURL, err := url.Parse(link[1])
		Expect(err).NotTo(HaveOccurred())
		token := strings.TrimPrefix(resetURL.Path, "/reset-password/")

		_, err = svc.ResetPassword(env.ctx, auth.ResetPasswordRequest{Token: token, Password: "battery staple"})
		Expect(err).NotTo(HaveOccurred())
		box.last(notify.KindResetSuccess)

		_, err = svc.Login(env.ctx, auth.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
		Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidCredential))

		login, err := svc.Login(env.ctx, auth.LoginRequest{Email: "ada@example.com", Password: "battery staple"})
		Expect(err).NotTo(HaveOccurred())
		Expect(login.Account.LastLoginAt).NotTo(BeNil())
	})

	It("rejects a duplicate email regardless of case", func() {
		register("ada@example.com")

		_, err := svc.Register(env.ctx, auth.RegisterRequest{Email: " ADA@example.com", Password: "x", Name: "Imposter"})
		Expect(auth.KindOf(err)).To(Equal(auth.KindConflict))
	})

	It("lets exactly one concurrent verification consume a code", func() {
		register("ada@example.com")
		code := verificationCode()

		const attempts = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := svc.VerifyEmail(env.ctx, auth.VerifyEmailRequest{Code: code})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidOrExpiredToken))
				rejected++
			}()
		}
		wg.Wait()

		Expect(succeeded).To(Equal(1))
		Expect(rejected).To(Equal(attempts - 1))
	})

	It("commits the state change when delivery fails", func() {
		box.failing = notify.KindVerification

		reg := register("ada@example.com")
		Expect(reg.Notification.Degraded()).To(BeTrue())
		Expect(reg.Notification.Warning()).To(Equal("verification email could not be sent"))

		box.failing = ""
		resent, err := svc.ResendVerification(env.ctx, "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(resent.Notification.Degraded()).To(BeFalse())

		_, err = svc.VerifyEmail(env.ctx, auth.VerifyEmailRequest{Code: verificationCode()})
		Expect(err).NotTo(HaveOccurred())
	})
})
