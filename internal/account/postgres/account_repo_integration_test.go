// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

//go:build integration

package postgres_test

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fokushq/fokus/internal/account"
	"github.com/fokushq/fokus/internal/account/postgres"
)

var _ = Describe("AccountRepository", func() {
	var (
		repo *postgres.AccountRepository
		now  time.Time
	)

	newAccount := func(email string) *account.Account {
		acct, err := account.New(account.NewParams{
			Email:        email,
			Name:         "Ann",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			Verification: account.PendingToken{Digest: "verify-" + email, ExpiresAt: now.Add(24 * time.Hour)},
		}, now)
		Expect(err).NotTo(HaveOccurred())
		return acct
	}

	BeforeEach(func() {
		cleanupAccounts(env.ctx, env.pool)
		repo = postgres.NewAccountRepository(env.pool)
		now = time.Now().UTC().Truncate(time.Microsecond)
	})

	Describe("Save and lookups", func() {
		It("round-trips an account", func() {
			acct := newAccount("a@x.com")
			Expect(repo.Save(env.ctx, acct)).To(Succeed())
			Expect(acct.Version).To(Equal(int64(1)))

			byID, err := repo.GetByID(env.ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal("a@x.com"))
			Expect(byID.Verification).NotTo(BeNil())
			Expect(byID.Verification.ExpiresAt.Equal(now.Add(24 * time.Hour))).To(BeTrue())
			Expect(byID.Reset).To(BeNil())
			Expect(byID.Version).To(Equal(int64(1)))

			byEmail, err := repo.GetByEmail(env.ctx, "  A@X.COM ")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(acct.ID))
		})

		It("refuses a verification token another account holds", func() {
			first := newAccount("a@x.com")
			Expect(repo.Save(env.ctx, first)).To(Succeed())

			second := newAccount("b@x.com")
			second.Verification = &account.PendingToken{
				Digest:    first.Verification.Digest,
				ExpiresAt: now.Add(24 * time.Hour),
			}
			err := repo.Save(env.ctx, second)
			Expect(errors.Is(err, account.ErrVerificationTokenTaken)).To(BeTrue(), "got %v", err)
			Expect(errors.Is(err, account.ErrConflict)).To(BeFalse())

			holder, err := repo.GetByVerificationToken(env.ctx, first.Verification.Digest, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(holder.ID).To(Equal(first.ID))
		})

		It("reports missing accounts", func() {
			_, err := repo.GetByID(env.ctx, ulid.Make())
			Expect(errors.Is(err, account.ErrNotFound)).To(BeTrue())

			_, err = repo.GetByEmail(env.ctx, "nobody@x.com")
			Expect(errors.Is(err, account.ErrNotFound)).To(BeTrue())
		})

		It("rejects a second account with the same email", func() {
			Expect(repo.Save(env.ctx, newAccount("dup@x.com"))).To(Succeed())
			err := repo.Save(env.ctx, newAccount("DUP@x.com"))
			Expect(errors.Is(err, account.ErrConflict)).To(BeTrue())
		})
	})

	Describe("token lookups", func() {
		It("finds unexpired tokens only", func() {
			acct := newAccount("t@x.com")
			Expect(repo.Save(env.ctx, acct)).To(Succeed())

			found, err := repo.GetByVerificationToken(env.ctx, "verify-t@x.com", now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(acct.ID))

			_, err = repo.GetByVerificationToken(env.ctx, "verify-t@x.com", now.Add(24*time.Hour))
			Expect(errors.Is(err, account.ErrNotFound)).To(BeTrue())
		})

		It("clears the reset token with the password", func() {
			acct := newAccount("r@x.com")
			Expect(repo.Save(env.ctx, acct)).To(Succeed())

			pending, err := acct.RequestReset(account.PendingToken{Digest: "reset-digest", ExpiresAt: now.Add(time.Hour)}, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Save(env.ctx, pending)).To(Succeed())

			found, err := repo.GetByResetToken(env.ctx, "reset-digest", now)
			Expect(err).NotTo(HaveOccurred())

			done, err := found.CompleteReset("reset-digest", "new-hash", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Save(env.ctx, done)).To(Succeed())

			_, err = repo.GetByResetToken(env.ctx, "reset-digest", now)
			Expect(errors.Is(err, account.ErrNotFound)).To(BeTrue())

			stored, err := repo.GetByID(env.ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PasswordHash).To(Equal("new-hash"))
			Expect(stored.Reset).To(BeNil())
		})
	})

	Describe("optimistic concurrency", func() {
		It("lets exactly one of two concurrent writers win", func() {
			acct := newAccount("race@x.com")
			Expect(repo.Save(env.ctx, acct)).To(Succeed())

			first, err := repo.GetByID(env.ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			second, err := repo.GetByID(env.ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				results []error
			)
			for _, a := range []*account.Account{first, second} {
				wg.Add(1)
				go func(a *account.Account) {
					defer GinkgoRecover()
					defer wg.Done()
					err := repo.Save(env.ctx, a.RecordLogin(now, ""))
					mu.Lock()
					results = append(results, err)
					mu.Unlock()
				}(a)
			}
			wg.Wait()

			var conflicts, successes int
			for _, err := range results {
				switch {
				case err == nil:
					successes++
				case errors.Is(err, account.ErrConflict):
					conflicts++
				}
			}
			Expect(successes).To(Equal(1))
			Expect(conflicts).To(Equal(1))

			stored, err := repo.GetByID(env.ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Version).To(Equal(int64(2)))
		})
	})
})
