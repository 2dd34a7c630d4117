// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fokushq/fokus/internal/store"
)

type testEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	container *tcpostgres.PostgresContainer
}

var env *testEnv

func TestAccountRepositoryIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Account Repository Integration Suite")
}

var _ = BeforeSuite(func() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fokus_test"),
		tcpostgres.WithUsername("fokus"),
		tcpostgres.WithPassword("fokus"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err := store.OpenPool(ctx, store.PoolConfig{URL: connStr}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	Expect(err).NotTo(HaveOccurred())

	env = &testEnv{ctx: ctx, pool: pool, container: container}
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	env.pool.Close()
	_ = env.container.Terminate(env.ctx)
})

func cleanupAccounts(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, "TRUNCATE accounts")
	Expect(err).NotTo(HaveOccurred())
}
