// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/pkg/errutil"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShow_RedactsPassword(t *testing.T) {
	isolateConfig(t)
	t.Setenv("DATABASE_URL", "postgres://app:s3cret@db:5432/tokengate")

	out, err := executeRoot(t, "config", "show", "--log-format", "text")
	require.NoError(t, err)

	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "postgres://app:xxxxx@db:5432/tokengate")

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "text", shown.Log.Format)
	assert.Equal(t, ":8080", shown.Server.Addr)
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	isolateConfig(t)

	_, err := executeRoot(t, "config", "show")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestConfigInit_WritesLoadableDefaults(t *testing.T) {
	dir := isolateConfig(t)

	out, err := executeRoot(t, "config", "init")
	require.NoError(t, err)

	path := filepath.Join(dir, "tokengate", "config.yaml")
	assert.Contains(t, out, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Setenv("DATABASE_URL", "postgres://db/tokengate")
	cfg, err := config.Load(config.LoadOptions{Path: path})
	require.NoError(t, err)
	want := config.Default()
	want.Database.URL = "postgres://db/tokengate"
	assert.Equal(t, want, *cfg)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: text\n"), 0o600))

	_, err := executeRoot(t, "--config", path, "config", "init")
	errutil.AssertErrorCode(t, err, "CONFIG_EXISTS")

	_, err = executeRoot(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "format: json")
}
