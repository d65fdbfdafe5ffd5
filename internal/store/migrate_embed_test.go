// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	names := map[Driver][]string{}
	for _, driver := range []Driver{DriverPostgres, DriverSQLite} {
		entries, err := migrationsFS.ReadDir(driver.migrationsDir())
		require.NoError(t, err, "read %s migrations", driver)

		ups, downs := 0, 0
		for _, entry := range entries {
			name := entry.Name()
			assert.True(t, pattern.MatchString(name), "%s/%s should match NNNNNN_name.(up|down).sql", driver, name)
			if strings.HasSuffix(name, ".up.sql") {
				ups++
			} else {
				downs++
			}
			names[driver] = append(names[driver], name)
		}
		assert.Equal(t, ups, downs, "every %s migration needs a down file", driver)
		assert.Contains(t, names[driver], "000001_users_sessions.up.sql")
	}

	assert.Equal(t, names[DriverPostgres], names[DriverSQLite], "drivers must share migration history")
}
