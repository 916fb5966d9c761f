// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// Index names created by the embedded migrations. The auth store tells a
// session id collision from a taken email by these names.
const (
	SessionsPrimaryKey = "sessions_pkey"
	UsersEmailIndex    = "users_email_lower_idx"
)

// requiredIndexes must exist in the current schema before serving.
var requiredIndexes = []string{SessionsPrimaryKey, UsersEmailIndex}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const missingIndexesSQL = `
SELECT required.name
FROM unnest($1::text[]) AS required(name)
WHERE NOT EXISTS (
    SELECT 1 FROM pg_class c
    WHERE c.relkind = 'i'
      AND c.relname = required.name
      AND c.relnamespace = current_schema()::regnamespace
)
ORDER BY required.name`

// MissingIndexes returns the required index names absent from the current
// schema, sorted. An empty result means the schema is usable.
func MissingIndexes(ctx context.Context, db queryer) ([]string, error) {
	rows, err := db.Query(ctx, missingIndexesSQL, requiredIndexes)
	if err != nil {
		return nil, oops.Code("SCHEMA_CHECK_FAILED").With("operation", "query pg_class").Wrap(err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.Code("SCHEMA_CHECK_FAILED").With("operation", "scan index name").Wrap(err)
		}
		missing = append(missing, name)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SCHEMA_CHECK_FAILED").With("operation", "read index names").Wrap(err)
	}
	return missing, nil
}

// VerifySchema fails with SCHEMA_MISMATCH when a required index is missing,
// which usually means migrations have not been applied.
func VerifySchema(ctx context.Context, db queryer) error {
	missing, err := MissingIndexes(ctx, db)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return oops.Code("SCHEMA_MISMATCH").
			With("missing_indexes", missing).
			Hint("run `tokengate migrate up` or enable database.auto_migrate").
			Errorf("database schema is missing required indexes")
	}
	return nil
}
