// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/internal/store"
)

const (
	sessionsPrimaryKey = store.SessionsPrimaryKey
	usersEmailIndex    = store.UsersEmailIndex
)

// classify maps driver errors onto the auth store sentinels. The original
// error stays in the chain. Unrecognized errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", auth.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == sessionsPrimaryKey:
			return fmt.Errorf("%w: %w", auth.ErrPrimaryKeyViolation, err)
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", auth.ErrUniqueViolation, err)
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %w", auth.ErrForeignKeyViolation, err)
		case pgerrcode.IsConnectionException(pgErr.Code):
			return fmt.Errorf("%w: %w", auth.ErrConnection, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", auth.ErrConnection, err)
	}
	return err
}
