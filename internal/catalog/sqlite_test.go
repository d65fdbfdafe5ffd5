// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package catalog_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/trainhub/internal/catalog"
	"github.com/holomush/trainhub/internal/store"
)

func TestSQLiteRepository_ListsSeededCatalog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	migrator, err := store.NewMigrator(store.DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	db, err := store.OpenSQLite(ctx, path, slog.Default())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	trainings, err := catalog.NewSQLiteRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, trainings, 7)

	titles := make([]string, 0, len(trainings))
	for _, tr := range trainings {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{"Yoga", "Boxing", "Running", "Weightlifting", "Cycling", "Gaming", "Sailing"}, titles)
	assert.Equal(t, "/yoga.jpg", trainings[0].Image)
	assert.Equal(t, "A gentle way to improve flexibility and balance.", trainings[0].Description)
}
