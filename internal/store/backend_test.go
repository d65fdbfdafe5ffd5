// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/store"
	"github.com/holomush/trainhub/pkg/errutil"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trainhub.db")

	migrator, err := store.NewMigrator(store.DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	backend, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, URL: path}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, backend.Close()) })

	require.NoError(t, backend.Ping(ctx))

	user, err := backend.Users.Create(ctx, "a@b.c", "digest:salt")
	require.NoError(t, err)

	now := time.Now()
	session, err := auth.NewSession(user.ID, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, backend.Sessions.Put(ctx, session))

	trainings, err := backend.Trainings.List(ctx)
	require.NoError(t, err)
	assert.Len(t, trainings, 7)
}

func TestOpen_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  store.Config
		code string
	}{
		{"unknown driver", store.Config{Driver: "mysql", URL: "x"}, "BACKEND_CONFIG_INVALID"},
		{"unknown session backend", store.Config{Driver: store.DriverSQLite, URL: "x", Sessions: "memcached"}, "BACKEND_CONFIG_INVALID"},
		{"empty sqlite path", store.Config{Driver: store.DriverSQLite}, "DB_CONFIG_INVALID"},
		{"bad postgres url", store.Config{Driver: store.DriverPostgres, URL: "postgres://%zz"}, "DB_CONFIG_INVALID"},
		{
			"bad redis url",
			store.Config{Driver: store.DriverSQLite, URL: filepath.Join(t.TempDir(), "r.db"), Sessions: store.SessionBackendRedis, RedisURL: "mongodb://nope"},
			"REDIS_CONFIG_INVALID",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := store.Open(ctx, tt.cfg, slog.Default())
			require.Error(t, err)
			assert.Nil(t, backend)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestDriver_Valid(t *testing.T) {
	assert.True(t, store.DriverPostgres.Valid())
	assert.True(t, store.DriverSQLite.Valid())
	assert.False(t, store.Driver("mysql").Valid())
	assert.True(t, store.SessionBackendRedis.Valid())
	assert.False(t, store.SessionBackend("").Valid())
}
