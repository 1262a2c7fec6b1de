package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// DefaultIDAttribute is the identity attribute used when a definition does
// not name one.
const DefaultIDAttribute = "id"

// idField is the reserved definition key naming the identity attribute.
const idField = "id"

// Definitions maps entity type names to their definitions.
type Definitions map[string]Definition

// Definition describes one entity type.
type Definition struct {
	// IDAttribute names the attribute holding the identity. Empty means
	// DefaultIDAttribute.
	IDAttribute string

	// Fields maps attribute names to the entity they reference.
	Fields map[string]Field
}

// Field is a relation from an attribute to another entity type.
type Field struct {
	Entity string
	Many   bool
}

// One declares a to-one relation.
func One(entity string) Field {
	return Field{Entity: entity}
}

// Many declares a to-many relation.
func Many(entity string) Field {
	return Field{Entity: entity, Many: true}
}

func (d Definition) idAttribute() string {
	if d.IDAttribute == "" {
		return DefaultIDAttribute
	}
	return d.IDAttribute
}

// UnmarshalYAML decodes the compact form: "field: entity",
// "field: [entity]" and "id: attribute".
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	*d = Definition{}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return invalidDefinition("expected mapping at line %d", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]

		switch value.Kind {
		case yaml.ScalarNode:
			if key == idField {
				d.IDAttribute = value.Value
				continue
			}
			if err := d.addField(key, Field{Entity: value.Value}); err != nil {
				return err
			}
		case yaml.SequenceNode:
			if len(value.Content) != 1 || value.Content[0].Kind != yaml.ScalarNode {
				return invalidDefinition("field %q: to-many relation must list exactly one entity (line %d)", key, value.Line)
			}
			if err := d.addField(key, Field{Entity: value.Content[0].Value, Many: true}); err != nil {
				return err
			}
		default:
			return invalidDefinition("field %q: expected entity name or [entity] (line %d)", key, value.Line)
		}
	}
	return nil
}

// UnmarshalJSON decodes the same compact form as UnmarshalYAML.
func (d *Definition) UnmarshalJSON(data []byte) error {
	*d = Definition{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalidDefinition("%v", err)
	}

	for key, value := range raw {
		var name string
		if err := json.Unmarshal(value, &name); err == nil {
			if key == idField {
				d.IDAttribute = name
				continue
			}
			if err := d.addField(key, Field{Entity: name}); err != nil {
				return err
			}
			continue
		}

		var list []string
		if err := json.Unmarshal(value, &list); err != nil || len(list) != 1 {
			return invalidDefinition("field %q: expected entity name or [entity]", key)
		}
		if err := d.addField(key, Field{Entity: list[0], Many: true}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Definition) addField(name string, f Field) error {
	if f.Entity == "" {
		return invalidDefinition("field %q: empty entity name", name)
	}
	if d.Fields == nil {
		d.Fields = make(map[string]Field)
	}
	d.Fields[name] = f
	return nil
}

func invalidDefinition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", zwyxerr.ErrInvalidSchema, fmt.Sprintf(format, args...))
}
