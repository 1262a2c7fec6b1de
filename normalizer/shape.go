package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Kind discriminates route shapes.
type Kind uint8

const (
	// KindFlat maps the whole response to one entity.
	KindFlat Kind = iota + 1
	// KindFlatArray maps the whole response to a list of entities.
	KindFlatArray
	// KindNested maps object keys of the response to sub-shapes.
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindFlatArray:
		return "flat_array"
	case KindNested:
		return "nested"
	default:
		return "invalid"
	}
}

// Shape describes how a response maps onto entity types.
type Shape struct {
	kind     Kind
	schema   string
	children []Child
}

// Child is one key of a nested shape.
type Child struct {
	Key   string
	Shape Shape
}

// Flat maps a response to a single entity of the given type.
func Flat(schema string) Shape {
	return Shape{kind: KindFlat, schema: schema}
}

// FlatArray maps a response to a list of entities of the given type.
func FlatArray(schema string) Shape {
	return Shape{kind: KindFlatArray, schema: schema}
}

// Nested maps object keys to sub-shapes, in the given order.
func Nested(children ...Child) Shape {
	return Shape{kind: KindNested, children: children}
}

// Key pairs an object key with its shape for Nested.
func Key(key string, shape Shape) Child {
	return Child{Key: key, Shape: shape}
}

func (s Shape) Kind() Kind { return s.kind }

// Schema returns the entity type of a flat shape.
func (s Shape) Schema() string { return s.schema }

// Children returns the keys of a nested shape in declaration order.
func (s Shape) Children() []Child { return s.children }

// IsLeaf reports whether the shape names an entity type directly.
func (s Shape) IsLeaf() bool {
	return s.kind == KindFlat || s.kind == KindFlatArray
}

// Leaf is a flat shape found at a dot-separated path of a nested shape.
type Leaf struct {
	Path  string
	Shape Shape
}

// Leaves lists every flat shape below s in declaration order. A flat s
// yields one leaf with an empty path.
func (s Shape) Leaves() []Leaf {
	var out []Leaf
	s.walk("", func(path string, leaf Shape) {
		out = append(out, Leaf{Path: path, Shape: leaf})
	})
	return out
}

func (s Shape) walk(path string, fn func(string, Shape)) {
	if s.IsLeaf() {
		fn(path, s)
		return
	}
	for _, c := range s.children {
		c.Shape.walk(joinPath(path, c.Key), fn)
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (s Shape) validate() error {
	switch s.kind {
	case KindFlat, KindFlatArray:
		if s.schema == "" {
			return fmt.Errorf("%w: empty entity name", zwyxerr.ErrInvalidRoute)
		}
	case KindNested:
		if len(s.children) == 0 {
			return fmt.Errorf("%w: nested shape without keys", zwyxerr.ErrInvalidRoute)
		}
		seen := make(map[string]bool, len(s.children))
		for _, c := range s.children {
			if seen[c.Key] {
				return fmt.Errorf("%w: duplicate key %q", zwyxerr.ErrInvalidRoute, c.Key)
			}
			seen[c.Key] = true
			if err := c.Shape.validate(); err != nil {
				return fmt.Errorf("%s: %w", c.Key, err)
			}
		}
	default:
		return fmt.Errorf("%w: zero shape", zwyxerr.ErrInvalidRoute)
	}
	return nil
}

// UnmarshalYAML decodes "entity", "[entity]" or a mapping of sub-shapes.
// Mapping order is kept.
func (s *Shape) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = Flat(node.Value)
	case yaml.SequenceNode:
		if len(node.Content) != 1 || node.Content[0].Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: list shape must name exactly one entity (line %d)", zwyxerr.ErrInvalidRoute, node.Line)
		}
		*s = FlatArray(node.Content[0].Value)
	case yaml.MappingNode:
		children := make([]Child, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var child Shape
			if err := child.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			children = append(children, Key(node.Content[i].Value, child))
		}
		*s = Nested(children...)
	default:
		return fmt.Errorf("%w: unsupported shape at line %d", zwyxerr.ErrInvalidRoute, node.Line)
	}
	return s.validate()
}

// MarshalYAML renders the compact form accepted by UnmarshalYAML.
func (s Shape) MarshalYAML() (any, error) {
	return s.node(), nil
}

func (s Shape) node() *yaml.Node {
	switch s.kind {
	case KindFlat:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: s.schema}
	case KindFlatArray:
		return &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: s.schema},
		}}
	}
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range s.children {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.Key}, c.Shape.node())
	}
	return n
}

// UnmarshalJSON decodes the same forms as UnmarshalYAML, keeping object
// key order.
func (s *Shape) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	shape, err := decodeShape(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after shape", zwyxerr.ErrInvalidRoute)
	}
	*s = shape
	return s.validate()
}

// MarshalJSON renders the compact form accepted by UnmarshalJSON.
func (s Shape) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encodeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s Shape) encodeJSON(buf *bytes.Buffer) error {
	switch s.kind {
	case KindFlat, KindFlatArray:
		name, err := json.Marshal(s.schema)
		if err != nil {
			return err
		}
		if s.kind == KindFlatArray {
			buf.WriteByte('[')
			buf.Write(name)
			buf.WriteByte(']')
			return nil
		}
		buf.Write(name)
		return nil
	}

	buf.WriteByte('{')
	for i, c := range s.children {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := c.Shape.encodeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func decodeShape(dec *json.Decoder) (Shape, error) {
	tok, err := dec.Token()
	if err != nil {
		return Shape{}, fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
	}

	switch t := tok.(type) {
	case string:
		return Flat(t), nil
	case json.Delim:
		switch t {
		case '[':
			name, err := dec.Token()
			if err != nil {
				return Shape{}, fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
			}
			schema, ok := name.(string)
			if !ok {
				return Shape{}, fmt.Errorf("%w: list shape must name exactly one entity", zwyxerr.ErrInvalidRoute)
			}
			if end, err := dec.Token(); err != nil || end != json.Delim(']') {
				return Shape{}, fmt.Errorf("%w: list shape must name exactly one entity", zwyxerr.ErrInvalidRoute)
			}
			return FlatArray(schema), nil
		case '{':
			var children []Child
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Shape{}, fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
				}
				child, err := decodeShape(dec)
				if err != nil {
					return Shape{}, err
				}
				children = append(children, Key(keyTok.(string), child))
			}
			if _, err := dec.Token(); err != nil {
				return Shape{}, fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
			}
			return Nested(children...), nil
		}
	}
	return Shape{}, fmt.Errorf("%w: unexpected %v", zwyxerr.ErrInvalidRoute, tok)
}
