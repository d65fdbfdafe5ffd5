// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesThenChecks(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schemas", "config.schema.json")

	require.NoError(t, run(out, false))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessions"`)

	assert.NoError(t, run(out, true), "fresh file passes the check")

	require.NoError(t, os.WriteFile(out, []byte("{}\n"), 0o600))
	err = run(out, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
}

func TestRun_CheckMissingFile(t *testing.T) {
	assert.Error(t, run(filepath.Join(t.TempDir(), "missing.json"), true))
}
