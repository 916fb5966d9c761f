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
	"gopkg.in/yaml.v3"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/xdg"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration serve would use after applying defaults, the
config file, DATABASE_URL and flags. The database password is masked.`,
		RunE: runConfigShow,
	}
	addConfigFlags(show)

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	cmd.Print(string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return err //nolint:wrapcheck // xdg returns coded errors
		}
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists, use --force to overwrite")
		} else if !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return err //nolint:wrapcheck // xdg returns coded errors
	}

	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	cmd.Println("Wrote " + path)
	return nil
}
