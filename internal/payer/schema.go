package payer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// registrySchema returns the JSON-Schema a registry document must satisfy.
func registrySchema() map[string]any {
	keywords := map[string]any{
		"type":     "array",
		"minItems": 1,
		"items":    map[string]any{"type": []any{"string", "number"}},
	}
	profile := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"numeric_id", "prefix", "filename_template", "types"},
		"properties": map[string]any{
			"numeric_id":        map[string]any{"type": []any{"string", "integer"}, "pattern": `^\d+$`},
			"prefix":            map[string]any{"type": "string"},
			"suffix":            map[string]any{"type": "string"},
			"filename_template": map[string]any{"type": "string", "minLength": 1},
			"types": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"additionalProperties": keywords,
			},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"payers"},
		"properties": map[string]any{
			"payers": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"additionalProperties": profile,
			},
		},
	}
}

// validateNode checks a parsed registry document against registrySchema.
func validateNode(doc *yaml.Node) error {
	b, err := json.Marshal(registrySchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("registry.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("registry.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	v, err := nodeValue(doc)
	if err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("registry does not match schema: %w", err)
	}
	return nil
}

// nodeValue converts a YAML node into the plain JSON value shapes the validator expects.
// Mapping keys are stringified so numeric type codes survive the conversion.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			b, err := strconv.ParseBool(n.Value)
			if err != nil {
				return n.Value, nil
			}
			return b, nil
		case "!!int", "!!float":
			if _, err := strconv.ParseFloat(n.Value, 64); err == nil {
				return json.Number(n.Value), nil
			}
			return n.Value, nil
		default:
			return n.Value, nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}
