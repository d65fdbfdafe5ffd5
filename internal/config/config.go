// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads trainhub configuration from defaults, a YAML file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	cryptotls "crypto/tls"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/logging"
	"github.com/holomush/trainhub/internal/store"
	"github.com/holomush/trainhub/internal/tls"
	"github.com/holomush/trainhub/internal/xdg"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full trainhub configuration.
type Config struct {
	Env      string         `koanf:"env" jsonschema:"enum=development,enum=production,default=development"`
	Log      LogConfig      `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Sessions SessionsConfig `koanf:"sessions"`
	Hasher   HasherConfig   `koanf:"hasher"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text,default=json"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// HTTPConfig configures the public web listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" jsonschema:"default=:8080"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TLS             TLSConfig     `koanf:"tls"`
	CORSOrigins     []string      `koanf:"cors_origins" jsonschema:"description=front-end origins allowed to call the server with credentials"`
}

// TLSConfig selects how the web listener serves HTTPS.
type TLSConfig struct {
	Mode     string   `koanf:"mode" jsonschema:"enum=off,enum=files,enum=self_signed,default=off"`
	CertFile string   `koanf:"cert_file"`
	KeyFile  string   `koanf:"key_file"`
	Hosts    []string `koanf:"hosts" jsonschema:"description=names and addresses for the self-signed certificate"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" jsonschema:"default=127.0.0.1:9100"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver          string `koanf:"driver" jsonschema:"enum=sqlite,enum=postgres,default=sqlite"`
	URL             string `koanf:"url" jsonschema:"description=postgres connection string or sqlite file path"`
	ConnectAttempts uint64 `koanf:"connect_attempts" jsonschema:"minimum=1,default=5"`
	AutoMigrate     bool   `koanf:"auto_migrate" jsonschema:"description=apply pending migrations when serve starts,default=true"`
}

// SessionsConfig configures session lifetime and storage.
type SessionsConfig struct {
	Store         string        `koanf:"store" jsonschema:"enum=database,enum=redis,default=database"`
	RedisURL      string        `koanf:"redis_url"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Cookie        CookieConfig  `koanf:"cookie"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name   string `koanf:"name" jsonschema:"default=auth_session"`
	Domain string `koanf:"domain"`
	Policy string `koanf:"policy" jsonschema:"enum=browser,enum=persistent,default=browser"`
	Secure bool   `koanf:"secure" jsonschema:"description=forced on when env is production"`
}

// HasherConfig holds the scrypt cost parameters.
type HasherConfig struct {
	N int `koanf:"n" jsonschema:"minimum=2,default=16384"`
	R int `koanf:"r" jsonschema:"minimum=1,default=8"`
	P int `koanf:"p" jsonschema:"minimum=1,default=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:     EnvDevelopment,
		Log:     LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			TLS:             TLSConfig{Mode: tls.ModeOff, Hosts: []string{"localhost", "127.0.0.1", "::1"}},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{
			Driver:          string(store.DriverSQLite),
			ConnectAttempts: store.DefaultConnectAttempts,
			AutoMigrate:     true,
		},
		Sessions: SessionsConfig{
			Store:         string(store.SessionBackendDatabase),
			RedisURL:      "redis://localhost:6379/0",
			TTL:           auth.DefaultSessionTTL,
			SweepInterval: time.Hour,
			Cookie: CookieConfig{
				Name:   auth.DefaultCookieName,
				Policy: string(auth.CookiePolicyBrowser),
			},
		},
		Hasher: HasherConfig{N: auth.DefaultScryptN, R: auth.DefaultScryptR, P: auth.DefaultScryptP},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	fail := func(key string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s: %s", key, msg)
	}

	if !slices.Contains([]string{EnvDevelopment, EnvProduction}, c.Env) {
		return fail("env", c.Env, "must be development or production")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fail("log.format", c.Log.Format, "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fail("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	if c.HTTP.Addr == "" {
		return fail("http.addr", c.HTTP.Addr, "is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fail("http.shutdown_timeout", c.HTTP.ShutdownTimeout, "must be positive")
	}
	for _, origin := range c.HTTP.CORSOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fail("http.cors_origins", origin, "origins must start with http:// or https://")
		}
	}
	switch c.HTTP.TLS.Mode {
	case tls.ModeOff:
	case tls.ModeFiles:
		if c.HTTP.TLS.CertFile == "" || c.HTTP.TLS.KeyFile == "" {
			return fail("http.tls", c.HTTP.TLS.Mode, "files mode requires cert_file and key_file")
		}
	case tls.ModeSelfSigned:
		if len(c.HTTP.TLS.Hosts) == 0 {
			return fail("http.tls.hosts", c.HTTP.TLS.Hosts, "self_signed mode requires at least one host")
		}
	default:
		return fail("http.tls.mode", c.HTTP.TLS.Mode, "must be off, files or self_signed")
	}
	if !store.Driver(c.Database.Driver).Valid() {
		return fail("database.driver", c.Database.Driver, "must be sqlite or postgres")
	}
	if c.Database.Driver == string(store.DriverPostgres) && c.Database.URL == "" {
		return fail("database.url", c.Database.URL, "is required for postgres")
	}
	if c.Database.ConnectAttempts == 0 {
		return fail("database.connect_attempts", c.Database.ConnectAttempts, "must be at least 1")
	}
	if !store.SessionBackend(c.Sessions.Store).Valid() {
		return fail("sessions.store", c.Sessions.Store, "must be database or redis")
	}
	if c.Sessions.Store == string(store.SessionBackendRedis) && c.Sessions.RedisURL == "" {
		return fail("sessions.redis_url", c.Sessions.RedisURL, "is required for the redis store")
	}
	if c.Sessions.TTL < time.Minute {
		return fail("sessions.ttl", c.Sessions.TTL, "must be at least one minute")
	}
	if c.Sessions.SweepInterval < 0 {
		return fail("sessions.sweep_interval", c.Sessions.SweepInterval, "must not be negative")
	}
	if c.Sessions.Cookie.Name == "" {
		return fail("sessions.cookie.name", c.Sessions.Cookie.Name, "is required")
	}
	if !auth.CookiePolicy(c.Sessions.Cookie.Policy).Valid() {
		return fail("sessions.cookie.policy", c.Sessions.Cookie.Policy, "must be browser or persistent")
	}
	if _, err := auth.NewScryptHasherWithParams(c.ScryptParams()); err != nil {
		return fail("hasher", c.Hasher, err.Error())
	}
	return nil
}

// IsProduction reports whether env is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// LoggingOptions returns the logger settings for service at version.
func (c *Config) LoggingOptions(service, version string) logging.Options {
	level, _ := logging.ParseLevel(c.Log.Level) //nolint:errcheck // Validate rejects unknown levels
	return logging.Options{Service: service, Version: version, Format: c.Log.Format, Level: level}
}

// ScryptParams returns the hasher cost parameters.
func (c *Config) ScryptParams() auth.ScryptParams {
	return auth.ScryptParams{N: c.Hasher.N, R: c.Hasher.R, P: c.Hasher.P}
}

// TLSEnabled reports whether the web listener serves HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.HTTP.TLS.Mode != tls.ModeOff
}

// ListenerTLS returns the web listener's TLS settings, or nil when TLS is off.
// Self-signed certificates live under the XDG data directory.
func (c *Config) ListenerTLS(now time.Time) (*cryptotls.Config, error) {
	switch c.HTTP.TLS.Mode {
	case tls.ModeFiles:
		return tls.LoadServerTLS(c.HTTP.TLS.CertFile, c.HTTP.TLS.KeyFile)
	case tls.ModeSelfSigned:
		dir, err := xdg.CertsDir()
		if err != nil {
			return nil, err
		}
		return tls.EnsureSelfSigned(dir, c.HTTP.TLS.Hosts, now)
	default:
		return nil, nil
	}
}

// SessionManagerConfig returns the session lifetime and cookie settings.
// Production and HTTPS listeners always mark the cookie Secure.
func (c *Config) SessionManagerConfig() auth.SessionManagerConfig {
	return auth.SessionManagerConfig{
		TTL: c.Sessions.TTL,
		Cookie: auth.CookieConfig{
			Name:     c.Sessions.Cookie.Name,
			Domain:   c.Sessions.Cookie.Domain,
			Secure:   c.Sessions.Cookie.Secure || c.IsProduction() || c.TLSEnabled(),
			SameSite: http.SameSiteLaxMode,
			Policy:   auth.CookiePolicy(c.Sessions.Cookie.Policy),
		},
	}
}

// StoreConfig returns the storage settings. An empty sqlite URL resolves to
// trainhub.db under the XDG data directory, which is created if missing.
func (c *Config) StoreConfig() (store.Config, error) {
	url := c.Database.URL
	if url == "" && c.Database.Driver == string(store.DriverSQLite) {
		dir, err := xdg.DataDir()
		if err != nil {
			return store.Config{}, err
		}
		if err := xdg.EnsureDir(dir); err != nil {
			return store.Config{}, err
		}
		url = filepath.Join(dir, "trainhub.db")
	}
	return store.Config{
		Driver:          store.Driver(c.Database.Driver),
		URL:             url,
		Sessions:        store.SessionBackend(c.Sessions.Store),
		RedisURL:        c.Sessions.RedisURL,
		ConnectAttempts: c.Database.ConnectAttempts,
	}, nil
}
