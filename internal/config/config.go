// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package config loads tokengate settings from defaults, an optional YAML
// file, the DATABASE_URL environment variable and command-line flags, in
// that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/internal/logging"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DatabaseURLEnv overrides database.url when set.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the effective runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Session  SessionConfig  `koanf:"session" yaml:"session"`
	Password PasswordConfig `koanf:"password" yaml:"password"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file"`
}

// TLSEnabled reports whether the HTTP listener serves HTTPS.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// DatabaseConfig selects and addresses the session store.
type DatabaseConfig struct {
	URL             string `koanf:"url" yaml:"url"`
	Store           string `koanf:"store" yaml:"store"`
	ConnectAttempts uint64 `koanf:"connect_attempts" yaml:"connect_attempts"`

	// AutoMigrate applies pending migrations before serving.
	AutoMigrate bool `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// SessionConfig controls session lifetime and the cookie carrying it.
type SessionConfig struct {
	TTL           time.Duration `koanf:"ttl" yaml:"ttl"`
	RenewWindow   time.Duration `koanf:"renew_window" yaml:"renew_window"`
	CookieName    string        `koanf:"cookie_name" yaml:"cookie_name"`
	CookieSecure  bool          `koanf:"cookie_secure" yaml:"cookie_secure"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
}

// PasswordConfig holds argon2id cost parameters.
type PasswordConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Iterations  uint32 `koanf:"iterations" yaml:"iterations"`
	Parallelism uint8  `koanf:"parallelism" yaml:"parallelism"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := auth.DefaultArgon2Params()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     "127.0.0.1:9100",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Store:           StorePostgres,
			ConnectAttempts: 5,
		},
		Session: SessionConfig{
			TTL:           auth.DefaultSessionTTL,
			RenewWindow:   auth.DefaultRenewWindow,
			CookieName:    "token",
			CookieSecure:  true,
			SweepInterval: time.Hour,
		},
		Password: PasswordConfig{
			MemoryKiB:   params.MemoryKiB,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
		},
		Log: LogConfig{Format: "json", Level: "info"},
	}
}

// LoadOptions describes where configuration comes from.
type LoadOptions struct {
	// Path is the YAML file to read. Empty skips the file.
	Path string

	// Optional makes a missing file at Path acceptable.
	Optional bool

	// Flags are applied last. Only flags the user changed are used; see
	// FlagKeys for the flag to key mapping.
	Flags *pflag.FlagSet

	// Getenv reads the environment. Defaults to os.Getenv.
	Getenv func(string) string
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"addr":          "server.addr",
	"metrics-addr":  "server.metrics_addr",
	"database-url":  "database.url",
	"store":         "database.store",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"cookie-secure": "session.cookie_secure",
	"auto-migrate":  "database.auto_migrate",
	"tls-cert":      "server.tls_cert_file",
	"tls-key":       "server.tls_key_file",
}

// Load builds the effective configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if opts.Path != "" && !skipFile(opts) {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if dbURL := getenv(DatabaseURLEnv); dbURL != "" {
		if err := k.Set("database.url", dbURL); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", DatabaseURLEnv).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	cfg.Database.Store = strings.ToLower(strings.TrimSpace(cfg.Database.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func skipFile(opts LoadOptions) bool {
	if !opts.Optional {
		return false
	}
	_, err := os.Stat(opts.Path)
	return errors.Is(err, fs.ErrNotExist)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("field", field).With("value", value).Errorf("%s", msg)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", c.Server.Addr, "server address is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", c.Server.ShutdownTimeout, "shutdown timeout must be positive")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return invalid("server.tls_cert_file", c.Server.TLSCertFile, "tls cert and key files must be set together")
	}

	switch c.Database.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "", "database url is required for the postgres store")
		}
	case StoreMemory:
	default:
		return invalid("database.store", c.Database.Store, "store must be postgres or memory")
	}
	if c.Database.ConnectAttempts == 0 {
		return invalid("database.connect_attempts", c.Database.ConnectAttempts, "connect attempts must be at least 1")
	}

	if err := c.SessionPolicy().Validate(); err != nil {
		return invalid("session", c.SessionPolicy(), err.Error())
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return invalid("session.cookie_name", c.Session.CookieName, "cookie name is required")
	}
	if c.Session.SweepInterval < 0 {
		return invalid("session.sweep_interval", c.Session.SweepInterval, "sweep interval must not be negative")
	}

	if c.Password.MemoryKiB == 0 || c.Password.Iterations == 0 || c.Password.Parallelism == 0 {
		return invalid("password", c.Password, "argon2 parameters must be positive")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", c.Log.Format, "log format must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, err.Error())
	}
	return nil
}

// SessionPolicy returns the session lifetime settings for the auth package.
func (c *Config) SessionPolicy() auth.SessionPolicy {
	return auth.SessionPolicy{TTL: c.Session.TTL, RenewWindow: c.Session.RenewWindow}
}

// Argon2Params returns the hashing cost for the auth package.
func (c *Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		MemoryKiB:   c.Password.MemoryKiB,
		Iterations:  c.Password.Iterations,
		Parallelism: c.Password.Parallelism,
	}
}

// Redacted returns a copy safe to print. The database password is masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Database.URL = RedactURL(c.Database.URL)
	return out
}

// RedactURL masks the password in a database URL or a keyword/value
// connection string.
func RedactURL(raw string) string {
	if raw == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		return u.Redacted()
	}

	if !strings.Contains(strings.ToLower(raw), "password=") {
		return raw
	}
	fields := strings.Fields(raw)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=" + logging.Redacted
		}
	}
	return strings.Join(fields, " ")
}
