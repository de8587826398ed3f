package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is the JSON schema config.json is validated against before being
// decoded into Config.
const Schema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"data-dir": {"type": "string"},
		"partition-duration": {"type": "string"},
		"notify-addr": {"type": "string"},
		"checkpoints": {
			"type": "object",
			"properties": {
				"roll-size-mb": {"type": "integer", "minimum": 1},
				"roll-age": {"type": "string"}
			}
		},
		"admission": {
			"type": "object",
			"properties": {
				"max-in-flight-bytes": {"type": "integer", "minimum": 0},
				"max-records-per-second": {"type": "integer", "minimum": 0}
			}
		},
		"object-store": {
			"type": "object",
			"properties": {
				"kind": {"type": "string", "enum": ["fs", "s3"]}
			},
			"required": ["kind"]
		}
	}
}`

// Validate parses and validates instance (a config.json body) against Schema.
func Validate(instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("config.json", Schema)
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("config: parse instance: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}
