package main

import (
	"encoding/json"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/jetgogoing/sage/pkg/config"
)

// SchemaCmd generates JSON Schema from sage's Config struct, grounded
// on kadirpekel/hector's cmd/hector/schema.go (same invopop/jsonschema
// Reflector settings, used there for a web config builder; here for
// config.json authoring/validation tooling).
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://sage.dev/schemas/config.json"
	schema.Title = "sage Configuration Schema"
	schema.Description = "Configuration schema for sage's conversational memory service"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(schema)
}
