package toolserver

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema builds a tool input JSON-schema from a Go struct's
// json/jsonschema tags, adapted from kadirpekel/hector's
// pkg/tool/functiontool schema generator.
func generateSchema[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("toolserver: marshal generated schema: %v", err))
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		panic(fmt.Sprintf("toolserver: unmarshal generated schema: %v", err))
	}
	delete(result, "$schema")
	delete(result, "$id")
	return result
}
