// Package config loads and validates container configuration: the list of
// service declarations a bootstrap translates into CreateService calls.
// Configuration is YAML on disk, validated structurally against a JSON
// schema before use.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/servicekit/errors"
	"github.com/c360/servicekit/logging"
	"github.com/c360/servicekit/property"
)

// ServiceConfig declares one service instance for bootstrap.
type ServiceConfig struct {
	// Name identifies the factory to construct the service with.
	Name string `yaml:"name" json:"name"`
	// Enabled defaults to true; disabled declarations are skipped.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Priority seeds the "Priority" property.
	Priority *uint64 `yaml:"priority,omitempty" json:"priority,omitempty"`
	// LogLevel seeds the "LogLevel" property (trace..error).
	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	// Properties holds additional free-form properties.
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Container is the top-level configuration document.
type Container struct {
	Services []ServiceConfig `yaml:"services" json:"services"`
}

// containerSchema is the structural contract configuration must satisfy.
const containerSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["services"],
	"additionalProperties": false,
	"properties": {
		"services": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"enabled": {"type": "boolean"},
					"priority": {"type": "integer", "minimum": 0},
					"logLevel": {"enum": ["trace", "debug", "info", "warn", "warning", "error"]},
					"properties": {"type": "object"}
				}
			}
		}
	}
}`

// Load reads and parses a configuration file.
func Load(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "read file")
	}
	return Parse(data)
}

// Parse decodes YAML configuration and validates it against the container
// schema.
func Parse(data []byte) (*Container, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Parse", "yaml decode")
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var cfg Container
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Parse", "yaml decode")
	}
	return &cfg, nil
}

// validate round-trips the document through JSON and checks it against the
// schema, so YAML-specific types are normalized first.
func validate(raw any) error {
	jsonDoc, err := json.Marshal(normalize(raw))
	if err != nil {
		return errors.WrapInvalid(err, "Config", "validate", "json conversion")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(containerSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "validate", "schema evaluation")
	}
	if !result.Valid() {
		msg := errors.ErrInvalidConfig
		for _, desc := range result.Errors() {
			msg = fmt.Errorf("%w: %s", msg, desc.String())
		}
		return errors.WrapInvalid(msg, "Config", "validate", "schema validation")
	}
	return nil
}

// normalize converts YAML's map[any]any shape into map[string]any so the
// document marshals to JSON.
func normalize(v any) any {
	switch vv := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// IsEnabled reports whether the declaration should be instantiated.
func (sc ServiceConfig) IsEnabled() bool {
	return sc.Enabled == nil || *sc.Enabled
}

// ToProperties converts a declaration into the properties handed to
// CreateService. Unknown property value types become inert strings.
func (sc ServiceConfig) ToProperties() property.Properties {
	props := property.Properties{}
	if sc.Priority != nil {
		props[property.KeyPriority] = property.Uint(*sc.Priority)
	}
	if sc.LogLevel != "" {
		if level, ok := logging.ParseLevel(sc.LogLevel); ok {
			props[property.KeyLogLevel] = logging.LevelProperty(level)
		}
	}
	for key, raw := range sc.Properties {
		props[key] = toValue(raw)
	}
	return props
}

func toValue(raw any) property.Value {
	switch v := raw.(type) {
	case bool:
		return property.Bool(v)
	case int:
		return property.Int(int64(v))
	case int64:
		return property.Int(v)
	case uint64:
		return property.Uint(v)
	case float64:
		return property.Float(v)
	case string:
		return property.String(v)
	case []byte:
		return property.Bytes(v)
	default:
		return property.String(fmt.Sprintf("%v", v))
	}
}
