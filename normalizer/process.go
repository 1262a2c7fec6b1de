package normalizer

import (
	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Process normalizes response data against an entity graph.
type Process struct {
	graph *schema.Graph
}

// NewProcess returns a Process over graph.
func NewProcess(graph *schema.Graph) *Process {
	return &Process{graph: graph}
}

// Normalize extracts the entities of data, read as the named entity type,
// and records the identities found at path. Whether the path holds a list
// is taken from data itself. An empty path means RootPath.
func (p *Process) Normalize(entity string, data any, path string) (*Normalized, error) {
	if path == "" {
		path = RootPath
	}

	e, ok := p.graph.Entity(entity)
	if !ok {
		return nil, zwyxerr.UnknownEntity("Process.Normalize", entity)
	}

	out := newNormalized()
	if data == nil {
		out.PathIDs[path] = PathEntry{Schema: entity}
		return out, nil
	}

	w := &walker{out: out}
	list, isArray := data.([]any)
	if isArray {
		for _, item := range list {
			w.value(e, item)
		}
	} else {
		w.value(e, data)
	}

	values := make([]any, len(out.IDs[entity]))
	copy(values, out.IDs[entity])
	out.PathIDs[path] = PathEntry{Schema: entity, Values: values, IsArray: isArray}
	return out, nil
}

// DeepNormalize walks shape and data in lock step, normalizes every leaf at
// its dot-separated path, and merges the results in declaration order.
func (p *Process) DeepNormalize(shape Shape, data any) (*Normalized, error) {
	if shape.IsLeaf() {
		return p.Normalize(shape.schema, data, RootPath)
	}

	var parts []*Normalized
	if err := p.deep(shape, data, "", &parts); err != nil {
		return nil, err
	}
	return Merge(parts...), nil
}

func (p *Process) deep(shape Shape, data any, path string, parts *[]*Normalized) error {
	if shape.IsLeaf() {
		n, err := p.Normalize(shape.schema, data, path)
		if err != nil {
			return err
		}
		*parts = append(*parts, n)
		return nil
	}

	// null below a mapping key: every leaf underneath is null
	if data == nil {
		for _, leaf := range shape.Leaves() {
			if _, ok := p.graph.Entity(leaf.Shape.schema); !ok {
				return zwyxerr.UnknownEntity("Process.DeepNormalize", leaf.Shape.schema)
			}
			n := newNormalized()
			n.PathIDs[joinPath(path, leaf.Path)] = PathEntry{Schema: leaf.Shape.schema}
			*parts = append(*parts, n)
		}
		return nil
	}

	obj, ok := data.(map[string]any)
	for _, c := range shape.children {
		childPath := joinPath(path, c.Key)
		if !ok {
			return zwyxerr.MissingField("Process.DeepNormalize", childPath)
		}
		value, present := obj[c.Key]
		if !present {
			return zwyxerr.MissingField("Process.DeepNormalize", childPath)
		}
		if err := p.deep(c.Shape, value, childPath, parts); err != nil {
			return err
		}
	}
	return nil
}

type walker struct {
	out *Normalized
}

// value normalizes v as entity e and returns what replaces it in the parent:
// the identity for an identified object, the rewritten object otherwise.
func (w *walker) value(e *schema.Entity, v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}

	id, identified := e.Identity(obj)
	if identified {
		// register on first encounter so a parent precedes its descendants
		w.out.seeID(e.Name, id)
	}

	record := make(map[string]any, len(obj))
	for k, v := range obj {
		record[k] = v
	}

	for _, rel := range e.Relations {
		field, present := obj[rel.Field]
		if !present || field == nil {
			continue
		}
		if list, isList := field.([]any); isList && rel.Many {
			refs := make([]any, len(list))
			for i, item := range list {
				refs[i] = w.value(rel.Target, item)
			}
			record[rel.Field] = refs
			continue
		}
		record[rel.Field] = w.value(rel.Target, field)
	}

	if !identified {
		return record
	}
	w.out.putRecord(e.Name, id, record)
	return id
}
