// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/trainhub/internal/xdg"
)

// EnvPrefix prefixes every environment variable trainhub reads.
// TRAINHUB_SESSIONS_SWEEP_INTERVAL sets sessions.sweep_interval.
const EnvPrefix = "TRAINHUB_"

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"env":             "env",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"addr":            "http.addr",
	"tls-mode":        "http.tls.mode",
	"metrics-addr":    "metrics.addr",
	"database-driver": "database.driver",
	"database-url":    "database.url",
	"sessions-store":  "sessions.store",
	"redis-url":       "sessions.redis_url",
}

// BindFlags registers the flags that override configuration keys.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("env", d.Env, "deployment environment (development or production)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn or error)")
	flags.String("addr", d.HTTP.Addr, "HTTP listen address")
	flags.String("tls-mode", d.HTTP.TLS.Mode, "HTTPS mode (off, files or self_signed)")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	flags.String("database-driver", d.Database.Driver, "database driver (sqlite or postgres)")
	flags.String("database-url", d.Database.URL, "database URL or sqlite path (default: XDG_DATA_HOME/trainhub/trainhub.db)")
	flags.String("sessions-store", d.Sessions.Store, "session store (database or redis)")
	flags.String("redis-url", d.Sessions.RedisURL, "redis URL for the redis session store")
}

// LoadOptions locates the configuration sources.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. It must exist when set. When empty,
	// $XDG_CONFIG_HOME/trainhub/config.yaml is read if present.
	ConfigFile string
	// EnvFile is a dotenv file. Defaults to DefaultEnvFile; a missing file is skipped.
	EnvFile string
	// Flags are parsed command-line flags registered with BindFlags.
	Flags *pflag.FlagSet
}

// Load builds the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	path, explicit, err := configFilePath(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
			}
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	envKeys := make(map[string]string)
	for _, key := range k.Keys() {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	envProvider := env.Provider(EnvPrefix, ".", func(name string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		flagProvider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(flagProvider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFilePath(explicit string) (path string, isExplicit bool, err error) {
	if explicit != "" {
		return explicit, true, nil
	}
	path, err = xdg.ConfigFile()
	if err != nil {
		return "", false, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").Wrap(err)
	}
	return path, false, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "dotenv").With("path", path).Wrap(err)
	}
	return nil
}
