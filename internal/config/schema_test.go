// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/trainhub/internal/config"
	"github.com/holomush/trainhub/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"env", "log", "http", "metrics", "database", "sessions", "hasher"} {
		assert.Contains(t, props, key)
	}

	sessions := props["sessions"].(map[string]any)["properties"].(map[string]any)
	ttl := sessions["ttl"].(map[string]any)
	assert.Equal(t, "string", ttl["type"], "durations are written as strings")
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty mapping", "{}", false},
		{"full document", `
env: production
log:
  format: text
http:
  addr: ":8080"
  shutdown_timeout: 15s
  cors_origins: [https://app.example.com]
  tls:
    mode: self_signed
    hosts: [localhost, 127.0.0.1]
database:
  driver: postgres
  url: postgres://localhost/trainhub
  connect_attempts: 3
sessions:
  store: redis
  redis_url: redis://localhost:6379/1
  ttl: 720h
  sweep_interval: 30m
  cookie:
    name: sid
    policy: persistent
    secure: true
hasher:
  n: 32768
  r: 8
  p: 2
`, false},
		{"unknown top-level key", "listen: :80\n", true},
		{"unknown nested key", "sessions:\n  lifetime: 1h\n", true},
		{"bad enum", "database:\n  driver: mysql\n", true},
		{"bad tls mode", "http:\n  tls:\n    mode: acme\n", true},
		{"duration as number", "sessions:\n  ttl: 3600\n", true},
		{"malformed duration", "sessions:\n  ttl: forever\n", true},
		{"connect attempts below minimum", "database:\n  connect_attempts: 0\n", true},
		{"invalid yaml", "sessions: [\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateSchema([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_INVALID")
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("empty data", func(t *testing.T) {
		err := config.ValidateSchema(nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_INVALID")
	})
}
