// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fokushq/fokus/internal/account"
	"github.com/fokushq/fokus/internal/account/memory"
	"github.com/fokushq/fokus/internal/account/postgres"
	"github.com/fokushq/fokus/internal/auth"
	"github.com/fokushq/fokus/internal/config"
	"github.com/fokushq/fokus/internal/httpapi"
	"github.com/fokushq/fokus/internal/logging"
	"github.com/fokushq/fokus/internal/notify"
	"github.com/fokushq/fokus/internal/observability"
	"github.com/fokushq/fokus/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account API",
		Long: `Run the account API with its metrics and health endpoints. Configuration
comes from built-in defaults, the --config file, FOKUS_* environment
variables and the flags below, in increasing precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs until ctx is cancelled or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "fokus",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	accounts, ready, closeStore, err := openAccounts(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	obs := observability.NewServer(cfg.Server.MetricsAddr, ready, logger)
	metrics := obs.Metrics()

	svc, err := buildService(cfg, accounts, metrics, logger)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(svc,
		httpapi.WithHandlerLogger(logger),
		httpapi.WithCookieConfig(httpapi.CookieConfig{
			Secure: cfg.Server.CookieSecure,
			Domain: cfg.Server.CookieDomain,
		}),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := httpapi.NewServer(cfg.Server.Addr, metrics.InstrumentHandler(handler.Routes()), logger)
	apiErrs, err := api.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrs, "api", logger)

	if cfg.Server.MetricsAddr != "" {
		obsErrs, err := obs.Start()
		if err != nil {
			stopServer(logger, cfg, "api", api.Stop)
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
	}

	logger.Info("fokus ready",
		"addr", api.Addr(),
		"metrics_addr", obs.Addr(),
		"mail_driver", cfg.Mail.Driver,
		"dev", cfg.Dev,
	)
	deps.OnReady(api.Addr())

	<-ctx.Done()
	logger.Info("shutting down")

	stopServer(logger, cfg, "api", api.Stop)
	stopServer(logger, cfg, "observability", obs.Stop)

	logger.Info("shutdown complete")
	return nil
}

// openAccounts returns the account repository, a readiness check and a
// cleanup func. Dev mode without a database URL uses the in-memory store.
func openAccounts(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (
	account.Repository, observability.ReadinessChecker, func(), error,
) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory account store; accounts are lost on exit")
		return memory.NewRepository(), nil, func() {}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return nil, nil, nil, err
		}
	}

	pool, err := deps.PoolFactory(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ConnectBackoff:  cfg.Database.ConnectBackoff,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("connected to database")

	return postgres.NewAccountRepository(pool), pool.Ping, pool.Close, nil
}

// runAutoMigration applies pending migrations. The migrator is always closed.
func runAutoMigration(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// buildService wires the hasher pool, token and session issuers and the
// mailer into an auth.Service.
func buildService(cfg *config.Config, accounts account.Repository, metrics *observability.Metrics, logger *slog.Logger) (*auth.Service, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:      cfg.Auth.Argon2.Time,
		MemoryKiB: cfg.Auth.Argon2.MemoryKiB,
		Threads:   cfg.Auth.Argon2.Threads,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := auth.NewSessionIssuer([]byte(cfg.Session.Secret),
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithSessionIssuerName(cfg.Session.Issuer),
	)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	mailer, err := notify.NewMailer(transport,
		notify.WithCompany(cfg.Mail.Company),
		notify.WithTokenLifetimes(auth.VerificationCodeExpiry, auth.ResetTokenExpiry),
	)
	if err != nil {
		return nil, err
	}

	return auth.NewService(auth.Deps{
		Accounts: accounts,
		Hasher:   auth.NewHashPool(hasher, cfg.Auth.HashWorkers, auth.WithHashObserver(metrics.ObservePasswordHash)),
		Tokens:   auth.NewTokenIssuer(),
		Sessions: sessions,
		Notifier: mailer,
	},
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithStorageTimeout(cfg.Auth.StorageTimeout),
		auth.WithNotifyTimeout(cfg.Auth.NotifyTimeout),
		auth.WithResetURLBase(cfg.Auth.ClientURL),
	)
}

func newTransport(cfg *config.Config, logger *slog.Logger) (notify.Transport, error) {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		return notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
			Timeout:  cfg.Mail.SMTP.Timeout,
		})
	case config.MailDriverLog:
		var opts []notify.LogOption
		if cfg.Mail.LogBodies {
			opts = append(opts, notify.WithBodies())
		}
		return notify.NewLogTransport(logger, opts...), nil
	}
	return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Mail.Driver).Errorf("unknown mail driver %q", cfg.Mail.Driver)
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopServer(logger *slog.Logger, cfg *config.Config, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}
