// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/fokushq/fokus/internal/account/postgres"
	"github.com/fokushq/fokus/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.OpenPool
	PoolFactory func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error)

	// MigratorFactory creates the migrator used when auto_migrate is on.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// OnReady is called with the API address once both servers listen.
	OnReady func(apiAddr string)
}

// Pool is the part of *pgxpool.Pool serve uses.
type Pool interface {
	postgres.Querier
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator applies pending migrations at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error) {
			pool, err := store.OpenPool(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}
