// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	tlscerts "github.com/tokengate/tokengate/internal/tls"
	"github.com/tokengate/tokengate/internal/xdg"
)

const caCommonName = "Tokengate Local CA"

type certsOptions struct {
	dir   string
	hosts []string
	force bool
}

// NewCertsCmd creates the certs command group.
func NewCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage local TLS certificates",
	}

	opts := &certsOptions{}
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a local CA and server certificate",
		Long: `Create a self-signed CA and a server certificate for local HTTPS, so
Secure session cookies work in development. An existing CA in the target
directory is reused; pass --force to replace it.

Use the result with: tokengate serve --tls-cert <dir>/server.crt --tls-key <dir>/server.key`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCertsGenerate(cmd, opts)
		},
	}
	generate.Flags().StringVar(&opts.dir, "dir", "", "output directory (default: XDG_CONFIG_HOME/tokengate/certs)")
	generate.Flags().StringSliceVar(&opts.hosts, "host", []string{"localhost", "127.0.0.1", "::1"}, "DNS names or IPs for the server certificate")
	generate.Flags().BoolVar(&opts.force, "force", false, "replace an existing CA")

	cmd.AddCommand(generate)
	return cmd
}

func runCertsGenerate(cmd *cobra.Command, opts *certsOptions) error {
	dir := opts.dir
	if dir == "" {
		configDir, err := xdg.ConfigDir()
		if err != nil {
			return err //nolint:wrapcheck // xdg returns coded errors
		}
		dir = filepath.Join(configDir, "certs")
	}

	ca, err := loadOrCreateCA(dir, opts.force)
	if err != nil {
		return err
	}

	server, err := tlscerts.GenerateServerCert(ca, opts.hosts)
	if err != nil {
		return err //nolint:wrapcheck // tls returns coded errors
	}
	if err := tlscerts.Save(dir, ca, server); err != nil {
		return err //nolint:wrapcheck // tls returns coded errors
	}

	cmd.Println("Wrote certificates to " + dir)
	cmd.Println("  CA:     " + filepath.Join(dir, tlscerts.CACertFile))
	cmd.Println("  cert:   " + filepath.Join(dir, tlscerts.ServerCertFile))
	cmd.Println("  key:    " + filepath.Join(dir, tlscerts.ServerKeyFile))
	return nil
}

func loadOrCreateCA(dir string, force bool) (*tlscerts.CA, error) {
	if !force {
		_, err := os.Stat(filepath.Join(dir, tlscerts.CACertFile))
		switch {
		case err == nil:
			return tlscerts.LoadCA(dir) //nolint:wrapcheck // tls returns coded errors
		case !errors.Is(err, fs.ErrNotExist):
			return nil, oops.Code("TLS_LOAD_FAILED").With("dir", dir).Wrap(err)
		}
	}
	return tlscerts.GenerateCA(caCommonName) //nolint:wrapcheck // tls returns coded errors
}
