// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import "path"

// Driver names a SQL backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Valid reports whether d is a supported driver.
func (d Driver) Valid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

func (d Driver) migrationsDir() string {
	return path.Join("migrations", string(d))
}

// SessionBackend names where sessions are kept.
type SessionBackend string

// Session backends. SessionBackendDatabase uses the SQL driver's sessions table.
const (
	SessionBackendDatabase SessionBackend = "database"
	SessionBackendRedis    SessionBackend = "redis"
)

// Valid reports whether b is a supported session backend.
func (b SessionBackend) Valid() bool {
	return b == SessionBackendDatabase || b == SessionBackendRedis
}
