// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the tokengate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokengate",
		Short: "Tokengate - email/password authentication with server-side sessions",
		Long: `Tokengate serves signup, login and logout over HTTP and resolves
session cookies to users, renewing sessions as they are used.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/tokengate/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewCertsCmd())

	return cmd
}

// addConfigFlags registers the flags that override config keys.
// Flag names must match config.FlagKeys.
func addConfigFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.String("addr", d.Server.Addr, "HTTP listen address")
	f.String("metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	f.String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	f.String("store", d.Database.Store, "session store backend (postgres or memory)")
	f.String("log-format", d.Log.Format, "log format (json or text)")
	f.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	f.Bool("cookie-secure", d.Session.CookieSecure, "mark the session cookie Secure")
	f.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations before serving")
	f.String("tls-cert", "", "TLS certificate file (enables HTTPS with --tls-key)")
	f.String("tls-key", "", "TLS private key file")
}

// loadConfig resolves the effective configuration for cmd. Without
// --config the XDG config file is read when it exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := config.LoadOptions{Path: configFile, Flags: cmd.Flags()}
	if opts.Path == "" {
		if path, err := xdg.ConfigFile(); err == nil {
			opts.Path = path
			opts.Optional = true
		}
	}
	return config.Load(opts) //nolint:wrapcheck // config errors carry their own codes
}
