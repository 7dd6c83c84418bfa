package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for notifsync.yml from the Config
// types. The embedded validation schema in schema/ is kept in sync with it.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Extension sections live next to the core keys.
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	// Extensions are inlined in the document, so they are left out of the
	// reflected struct.
	type BaseConfig struct {
		Version string        `yaml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
		API     APIConfig     `yaml:"api,omitempty" jsonschema:"description=REST data service"`
		Push    PushConfig    `yaml:"push,omitempty" jsonschema:"description=Push channel and reconnection"`
		Session SessionConfig `yaml:"session,omitempty" jsonschema:"description=Where the bearer token comes from"`
		Sync    SyncConfig    `yaml:"sync,omitempty" jsonschema:"description=Snapshot and command tuning"`
	}

	schema := r.Reflect(&BaseConfig{})
	schema.Title = "notifsync Configuration"
	schema.Description = "Schema for notifsync.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
