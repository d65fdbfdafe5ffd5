// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied to every connection. Foreign keys are required for
// ON DELETE CASCADE from users to sessions.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// sqliteDSN turns a file path (optionally prefixed with sqlite:// or file:) into a modernc DSN.
func sqliteDSN(databaseURL string) string {
	p := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite://"), "file:")
	sep := "?"
	if strings.Contains(p, "?") {
		sep = "&"
	}
	return "file:" + p + sep + sqlitePragmas
}

// OpenSQLite opens the SQLite database at databaseURL.
func OpenSQLite(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("sqlite database path is required")
	}

	db, err := sql.Open("sqlite", sqliteDSN(databaseURL))
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "open sqlite").
			With("path", databaseURL).
			Wrap(err)
	}

	if err := pingWithRetry(ctx, logger, "sqlite", 1, db.PingContext); err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping sqlite").
			With("path", databaseURL).
			Wrap(err)
	}
	return db, nil
}
