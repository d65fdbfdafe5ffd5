// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated config schema.
const SchemaID = "https://holomush.dev/schemas/trainhub-config.schema.json"

// durationPattern accepts Go duration strings such as 720h or 1h30m.
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

var (
	compileOnce    sync.Once
	compiledSchema *jschema.Schema
	errCompile     error
)

// JSONSchemaExtend documents durations as Go duration strings.
func (HTTPConfig) JSONSchemaExtend(s *jsonschema.Schema) {
	durationProperty(s, "shutdown_timeout")
}

// JSONSchemaExtend documents durations as Go duration strings.
func (SessionsConfig) JSONSchemaExtend(s *jsonschema.Schema) {
	durationProperty(s, "ttl")
	durationProperty(s, "sweep_interval")
}

func durationProperty(s *jsonschema.Schema, name string) {
	if prop, ok := s.Properties.Get(name); ok {
		prop.Type = "string"
		prop.Pattern = durationPattern
	}
}

// GenerateSchema returns the JSON Schema for config.yaml.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		FieldNameTag:               "koanf",
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "trainhub configuration"
	schema.Description = "Schema for trainhub config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateSchema checks YAML config data against the generated schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code("CONFIG_SCHEMA_INVALID").Errorf("config data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("stage", "parse").Wrap(err)
	}

	sch, err := schema()
	if err != nil {
		return err
	}
	if err := sch.Validate(jsonValue(doc)); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").With("stage", "validate").Wrap(err)
	}
	return nil
}

func schema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			errCompile = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			errCompile = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.schema.json", doc); err != nil {
			errCompile = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(err)
			return
		}
		compiledSchema, errCompile = c.Compile("config.schema.json")
		if errCompile != nil {
			errCompile = oops.Code("SCHEMA_COMPILE_FAILED").Wrap(errCompile)
		}
	})
	return compiledSchema, errCompile
}

// jsonValue converts yaml.v3 output to the types the validator expects.
func jsonValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonValue(item)
		}
		return out
	case int:
		return json.Number(fmt.Sprint(val))
	case int64:
		return json.Number(fmt.Sprint(val))
	case uint64:
		return json.Number(fmt.Sprint(val))
	case float64:
		return json.Number(fmt.Sprint(val))
	default:
		return val
	}
}
