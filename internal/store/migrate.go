// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register the pgx/v5 and sqlite database drivers for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

var (
	catalogMu sync.Mutex
	catalog   = map[Driver][]Migration{}
)

// migrateIface abstracts golang-migrate so the Migrator can be tested without a database.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator wraps golang-migrate for database schema management.
type Migrator struct {
	m      migrateIface
	driver Driver
}

// NewMigrator creates a Migrator for the given backend.
//
// For postgres, databaseURL is a connection string with a postgres://,
// postgresql:// or pgx5:// scheme; the first two are rewritten to pgx5:// for
// golang-migrate. For sqlite, databaseURL is the database file path.
func NewMigrator(driver Driver, databaseURL string) (*Migrator, error) {
	if !driver.Valid() {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("driver", driver).Errorf("unknown database driver")
	}

	source, err := iofs.New(migrationsFS, driver.migrationsDir())
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(driver, databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // cleanup for embedded FS; init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").
			With("operation", "initialize migrator").
			With("driver", driver).
			Wrap(err)
	}

	return &Migrator{m: m, driver: driver}, nil
}

// Driver returns the backend the migrator runs against.
func (m *Migrator) Driver() Driver {
	return m.driver
}

// migrateURL converts a configured database URL to the form golang-migrate expects.
func migrateURL(driver Driver, databaseURL string) string {
	switch driver {
	case DriverSQLite:
		path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite://"), "file:")
		return "sqlite://" + path
	default:
		if rest, found := strings.CutPrefix(databaseURL, "postgres://"); found {
			return "pgx5://" + rest
		}
		if rest, found := strings.CutPrefix(databaseURL, "postgresql://"); found {
			return "pgx5://" + rest
		}
		return databaseURL
	}
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations to version 0, effectively removing all schema objects.
// WARNING: This is a destructive operation that drops all tables and data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// A dirty state indicates a migration failed partway through and requires manual intervention.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only for recovering from a dirty state after manually fixing the database.
// Negative versions are rejected with MIGRATION_INVALID_VERSION.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("MIGRATION_INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases resources.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil && dbErr != nil {
		// Both failed - combine errors so neither is lost in logs
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	}
	if srcErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	}
	if dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// Migration is one embedded schema change.
type Migration struct {
	Version uint
	// Name is the file stem, e.g. 000001_users_sessions.
	Name string
}

// Migration states reported by Status.
const (
	StateApplied = "applied"
	StatePending = "pending"
	StateDirty   = "dirty"
)

// MigrationStatus is a migration and its state in the database.
type MigrationStatus struct {
	Migration
	State string
}

// Status describes the schema against the embedded migrations.
type Status struct {
	Version    uint
	Dirty      bool
	Migrations []MigrationStatus
}

// Pending counts migrations Up would apply.
func (s *Status) Pending() int {
	n := 0
	for _, m := range s.Migrations {
		if m.State == StatePending {
			n++
		}
	}
	return n
}

// Migrations lists the migrations embedded for driver in version order.
// The result is a copy of a cache; the embedded files never change.
func Migrations(driver Driver) ([]Migration, error) {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	list, ok := catalog[driver]
	if !ok {
		loaded, err := loadMigrations(driver)
		if err != nil {
			return nil, err
		}
		catalog[driver] = loaded
		list = loaded
	}
	return slices.Clone(list), nil
}

// loadMigrations reads NNNNNN_name.up.sql files. Other file names are skipped
// with a warning; TestMigrationsFS_EmbeddedFiles keeps the set well-formed.
func loadMigrations(driver Driver) ([]Migration, error) {
	entries, err := migrationsFS.ReadDir(driver.migrationsDir())
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("driver", driver).Wrap(err)
	}

	var list []Migration
	for _, entry := range entries {
		stem, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(stem, "%06d_", &version); err != nil {
			slog.Warn("skipping migration with unexpected file name",
				"driver", driver, "filename", entry.Name(), "error", err)
			continue
		}
		list = append(list, Migration{Version: version, Name: stem})
	}
	slices.SortFunc(list, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return list, nil
}

// Status reports every embedded migration as applied, pending or dirty.
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "migration status").Wrap(err)
	}
	list, err := Migrations(m.driver)
	if err != nil {
		return nil, oops.With("operation", "migration status").Wrap(err)
	}

	status := &Status{Version: version, Dirty: dirty, Migrations: make([]MigrationStatus, 0, len(list))}
	for _, mig := range list {
		state := StatePending
		switch {
		case dirty && mig.Version == version:
			state = StateDirty
		case mig.Version <= version:
			state = StateApplied
		}
		status.Migrations = append(status.Migrations, MigrationStatus{Migration: mig, State: state})
	}
	return status, nil
}
