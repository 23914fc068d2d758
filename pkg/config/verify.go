package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// schemaNode is the part of a JSON schema we verify against
type schemaNode struct {
	Ref        string                `json:"$ref"`
	Defs       map[string]schemaNode `json:"$defs"`
	Properties map[string]schemaNode `json:"properties"`
	Required   []string              `json:"required"`
}

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema.
// Checks that every field marked as required in the schema is set.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema schemaNode
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := checkRequired(schema.resolve(schema.Defs), schema.Defs, configMap, ""); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// resolve follows a local "#/$defs/Name" reference
func (n schemaNode) resolve(defs map[string]schemaNode) schemaNode {
	if n.Ref == "" {
		return n
	}
	if def, ok := defs[strings.TrimPrefix(n.Ref, "#/$defs/")]; ok {
		return def
	}
	return n
}

// checkRequired walks the schema and the config map together, reporting the first missing required field
func checkRequired(node schemaNode, defs map[string]schemaNode, data map[string]interface{}, path string) error {
	for _, name := range node.Required {
		v, ok := data[name]
		if !ok || v == nil || v == "" {
			return fmt.Errorf("%s%s is required", path, name)
		}
	}

	for name, prop := range node.Properties {
		sub, ok := data[name].(map[string]interface{})
		if !ok {
			continue
		}
		if err := checkRequired(prop.resolve(defs), defs, sub, path+name+"."); err != nil {
			return err
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	r := jsonschema.Reflector{RequiredFromJSONSchemaTags: true}
	return r.Reflect(&Config{}), nil
}
