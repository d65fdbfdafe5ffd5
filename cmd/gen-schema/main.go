// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the trainhub config JSON Schema.
//
//	gen-schema [--out schemas/config.schema.json] [--check]
//
// With --check it writes nothing and exits 1 if the file on disk is stale.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/trainhub/internal/config"
)

func main() {
	out := pflag.String("out", filepath.Join("schemas", "config.schema.json"), "schema file to write")
	check := pflag.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	pflag.Parse()

	if err := run(*out, *check); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

func run(out string, check bool) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	schema = append(schema, '\n')

	if check {
		current, err := os.ReadFile(filepath.Clean(out))
		if err != nil {
			return err
		}
		if !bytes.Equal(current, schema) {
			return oops.Code("SCHEMA_STALE").With("path", out).Errorf("%s is out of date; run gen-schema", out)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(out, schema, 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
