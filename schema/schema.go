package schema

import (
	"fmt"
	"sort"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Entity is a resolved entity type.
type Entity struct {
	Name        string
	IDAttribute string

	// Relations are ordered by field name.
	Relations []Relation
}

// Relation links an attribute of an entity to its target type.
type Relation struct {
	Field  string
	Target *Entity
	Many   bool
}

// Relation returns the relation declared on field.
func (e *Entity) Relation(field string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Field == field {
			return r, true
		}
	}
	return Relation{}, false
}

// Identity returns the identity of record, or false when the record has no
// non-null identity attribute.
func (e *Entity) Identity(record map[string]any) (any, bool) {
	id, ok := record[e.IDAttribute]
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// Graph is the compiled entity graph.
type Graph struct {
	entities map[string]*Entity
	names    []string
}

// Entity looks up an entity type by name.
func (g *Graph) Entity(name string) (*Entity, bool) {
	e, ok := g.entities[name]
	return e, ok
}

// Names returns every entity type name, sorted. Implicitly declared types
// are included.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// IDAttributes maps each entity type to its identity attribute.
func (g *Graph) IDAttributes() map[string]string {
	out := make(map[string]string, len(g.entities))
	for name, e := range g.entities {
		out[name] = e.IDAttribute
	}
	return out
}

// Option configures Build.
type Option func(*builder)

// Strict rejects relations that target undeclared entity types.
func Strict() Option {
	return func(b *builder) {
		b.strict = true
	}
}

type buildState uint8

const (
	unresolved buildState = iota
	building
	resolved
)

type builder struct {
	defs     Definitions
	strict   bool
	entities map[string]*Entity
	state    map[string]buildState
}

// Build resolves defs into a Graph.
func Build(defs Definitions, opts ...Option) (*Graph, error) {
	b := &builder{
		defs:     defs,
		entities: make(map[string]*Entity, len(defs)),
		state:    make(map[string]buildState, len(defs)),
	}
	for _, opt := range opts {
		opt(b)
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			return nil, zwyxerr.Validation("schema.Build", fmt.Errorf("%w: empty entity name", zwyxerr.ErrInvalidSchema))
		}
		if _, err := b.resolve(name, ""); err != nil {
			return nil, err
		}
	}

	g := &Graph{entities: b.entities, names: make([]string, 0, len(b.entities))}
	for name := range b.entities {
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)
	return g, nil
}

// resolve returns the entity for name, building it on first use. A type
// that is still building is returned as is so cycles terminate.
func (b *builder) resolve(name, referrer string) (*Entity, error) {
	if b.state[name] != unresolved {
		return b.entities[name], nil
	}

	def, declared := b.defs[name]
	if !declared && b.strict {
		return nil, zwyxerr.UnknownEntity("schema.Build", name).WithContext(map[string]any{"referenced_by": referrer})
	}

	e := &Entity{Name: name, IDAttribute: def.idAttribute()}
	b.entities[name] = e
	b.state[name] = building

	fields := make([]string, 0, len(def.Fields))
	for field := range def.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		f := def.Fields[field]
		if f.Entity == "" {
			return nil, zwyxerr.Validation("schema.Build",
				fmt.Errorf("%w: %s.%s has no target entity", zwyxerr.ErrInvalidSchema, name, field))
		}
		if field == e.IDAttribute {
			return nil, zwyxerr.Validation("schema.Build",
				fmt.Errorf("%w: %s.%s is the identity attribute", zwyxerr.ErrInvalidSchema, name, field))
		}

		target, err := b.resolve(f.Entity, name)
		if err != nil {
			return nil, err
		}
		e.Relations = append(e.Relations, Relation{Field: field, Target: target, Many: f.Many})
	}

	b.state[name] = resolved
	return e, nil
}
