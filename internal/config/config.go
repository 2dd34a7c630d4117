// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

// Package config loads the fokus configuration from defaults, a YAML file,
// FOKUS_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: FOKUS_SESSION__SECRET sets session.secret.
const EnvPrefix = "FOKUS_"

// MinSessionSecretLen is the shortest accepted session signing secret.
const MinSessionSecretLen = 32

// Mail drivers.
const (
	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

// Config is the complete service configuration.
type Config struct {
	Dev      bool           `koanf:"dev"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	CookieDomain    string        `koanf:"cookie_domain"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
	Issuer string        `koanf:"issuer"`
}

// AuthConfig configures the account service.
type AuthConfig struct {
	ClientURL      string        `koanf:"client_url"`
	HashWorkers    int           `koanf:"hash_workers"`
	StorageTimeout time.Duration `koanf:"storage_timeout"`
	NotifyTimeout  time.Duration `koanf:"notify_timeout"`
	Argon2         Argon2Config  `koanf:"argon2"`
}

// Argon2Config is the argon2id work factor for new hashes.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// MailConfig configures outgoing email.
type MailConfig struct {
	Driver    string     `koanf:"driver"`
	From      string     `koanf:"from"`
	Company   string     `koanf:"company"`
	LogBodies bool       `koanf:"log_bodies"`
	SMTP      SMTPConfig `koanf:"smtp"`
}

// SMTPConfig holds relay credentials.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// Timeout bounds one delivery attempt, dial through QUIT.
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:5000",
			MetricsAddr:     "127.0.0.1:9100",
			CookieSecure:    true,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
			AutoMigrate:     true,
		},
		Session: SessionConfig{
			TTL:    7 * 24 * time.Hour,
			Issuer: "fokus",
		},
		Auth: AuthConfig{
			ClientURL:      "http://localhost:5173",
			HashWorkers:    4,
			StorageTimeout: 5 * time.Second,
			NotifyTimeout:  10 * time.Second,
			Argon2:         Argon2Config{Time: 1, MemoryKiB: 64 * 1024, Threads: 4},
		},
		Mail: MailConfig{
			Driver:  MailDriverLog,
			From:    "Fokus <no-reply@fokus.local>",
			Company: "Fokus",
			SMTP:    SMTPConfig{Port: 587, Timeout: 10 * time.Second},
		},
		Log: LogConfig{Format: "json", Level: "info"},
	}
}

// flagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "server.metrics_addr",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"mail-driver":  "mail.driver",
	"dev":          "dev",
}

// RegisterFlags defines the overriding flags on fs. Their defaults are
// informational; Load only applies flags that were set.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("addr", def.Server.Addr, "API listen address")
	fs.String("metrics-addr", def.Server.MetricsAddr, "metrics/health listen address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	fs.Bool("auto-migrate", def.Database.AutoMigrate, "apply pending migrations on startup")
	fs.String("log-format", def.Log.Format, "log format (json or text)")
	fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	fs.String("mail-driver", def.Mail.Driver, "mail driver (log or smtp)")
	fs.Bool("dev", false, "development mode: in-memory accounts when no database is configured")
}

// Load builds the configuration. path may be empty to skip the file; flags
// may be nil. Only flags the user actually set override earlier layers.
// DATABASE_URL is used when no layer sets database.url.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode configuration").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

// envKey turns FOKUS_SESSION__SECRET into session.secret.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// Validate checks the values serve needs.
func (c *Config) Validate() error {
	err := validation.Errors{
		"server":   c.Server.validate(),
		"database": c.Database.validate(c.Dev),
		"session":  c.Session.validate(),
		"auth":     c.Auth.validate(),
		"mail":     c.Mail.validate(),
		"log":      c.Log.validate(),
	}.Filter()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Errorf("%s", err.Error())
	}
	return nil
}

func (s ServerConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Required, validation.Min(time.Second)),
	)
}

func (d DatabaseConfig) validate(dev bool) error {
	urlRules := []validation.Rule{}
	if !dev {
		urlRules = append(urlRules, validation.Required.Error("is required unless dev mode is enabled"))
	}
	return validation.ValidateStruct(&d,
		validation.Field(&d.URL, urlRules...),
		validation.Field(&d.MaxConns, validation.Required, validation.Min(int32(1))),
		validation.Field(&d.ConnectAttempts, validation.Required),
	)
}

func (s SessionConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Secret, validation.Required, validation.Length(MinSessionSecretLen, 0)),
		validation.Field(&s.TTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&s.Issuer, validation.Required),
	)
}

func (a AuthConfig) validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ClientURL, validation.Required, is.URL),
		validation.Field(&a.HashWorkers, validation.Required, validation.Min(1)),
		validation.Field(&a.StorageTimeout, validation.Required),
		validation.Field(&a.NotifyTimeout, validation.Required),
		validation.Field(&a.Argon2, validation.By(func(any) error {
			if a.Argon2.Time == 0 || a.Argon2.MemoryKiB == 0 || a.Argon2.Threads == 0 {
				return errors.New("time, memory_kib and threads must be positive")
			}
			return nil
		})),
	)
}

func (m MailConfig) validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Driver, validation.Required, validation.In(MailDriverLog, MailDriverSMTP)),
		validation.Field(&m.From, validation.Required),
	)
	if err != nil || m.Driver != MailDriverSMTP {
		return err
	}
	smtpErr := validation.ValidateStruct(&m.SMTP,
		validation.Field(&m.SMTP.Host, validation.Required),
		validation.Field(&m.SMTP.Port, validation.Required, validation.Max(65535)),
	)
	if smtpErr != nil {
		return validation.Errors{"smtp": smtpErr}
	}
	return nil
}

func (l LogConfig) validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.Required, validation.In("json", "text")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}
