// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package store owns the PostgreSQL schema, its migrations and connection
// setup.
package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

var upFilePattern = regexp.MustCompile(`^(\d{6})_(\w+)\.up\.sql$`)

// Migration is one embedded schema version.
type Migration struct {
	Version uint
	// Name is the file name part after the version, e.g. "create_sessions".
	Name string
}

// String returns the file stem, e.g. "000002_create_sessions".
func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

var embeddedMigrations = sync.OnceValues(readMigrations)

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}
	return slices.Clone(all), nil
}

func readMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var out []Migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		match := upFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, oops.Code("MIGRATION_SOURCE_FAILED").
				With("file", entry.Name()).
				Errorf("migration file name must look like NNNNNN_name.up.sql")
		}
		version, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("file", entry.Name()).Wrap(err)
		}
		out = append(out, Migration{Version: uint(version), Name: match[2]})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

func lookupMigration(version uint) (Migration, bool) {
	all, err := embeddedMigrations()
	if err != nil {
		return Migration{}, false
	}
	i := slices.IndexFunc(all, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return Migration{}, false
	}
	return all[i], true
}

// schemaDriver is the part of *migrate.Migrate the Migrator drives.
type schemaDriver interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded users and sessions schema.
type Migrator struct {
	driver schemaDriver
}

// NewMigrator creates a Migrator for databaseURL. postgres:// and
// postgresql:// URLs are rewritten to the pgx5:// scheme.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "open embedded source").Wrap(err)
	}

	driver, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // the init error is the one worth returning
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	return &Migrator{driver: driver}, nil
}

func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, scheme); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// ignoreNoChange treats "already there" as success.
func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.driver.Up()); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration. All users and sessions are dropped.
func (m *Migrator) Down() error {
	if err := ignoreNoChange(m.driver.Down()); err != nil {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := ignoreNoChange(m.driver.Steps(n)); err != nil {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current version and dirty flag. A fresh database
// reports version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.driver.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running any SQL. Version 0 marks the database as never migrated. Only
// embedded versions are accepted.
func (m *Migrator) Force(version uint) error {
	target := database.NilVersion
	if version != 0 {
		if _, ok := lookupMigration(version); !ok {
			return oops.Code("MIGRATION_UNKNOWN_VERSION").
				With("version", version).
				Errorf("no embedded migration has version %d", version)
		}
		target = int(version)
	}
	if err := m.driver.Force(target); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Status is a snapshot of the schema state.
type Status struct {
	Version uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// UpToDate reports whether every embedded migration is cleanly applied.
func (s *Status) UpToDate() bool {
	return !s.Dirty && len(s.Pending) == 0
}

// Status splits the embedded migrations at the current version. A version
// with no embedded file, e.g. written by a newer binary, is reported as an
// applied migration named "unknown".
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	all, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	status := &Status{Version: version, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= version {
			status.Applied = append(status.Applied, mig)
		} else {
			status.Pending = append(status.Pending, mig)
		}
	}
	if _, ok := lookupMigration(version); version != 0 && !ok {
		status.Applied = append(status.Applied, Migration{Version: version, Name: "unknown"})
	}
	return status, nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.driver.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("source_failed", srcErr != nil).
			With("database_failed", dbErr != nil).
			Wrap(err)
	}
	return nil
}
