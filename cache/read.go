package cache

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Read rebuilds the response answering req from its pointer and the stored
// entities, expanding relations through graph. A missing pointer or a
// missing top-level entity yields an error matching zwyxerr.ErrNotFound.
// Related entities absent from the cache stay as bare identities, and so do
// relations leading back to an entity already being expanded.
func (m *Manager) Read(ctx context.Context, req link.Request, graph *schema.Graph) (any, error) {
	ctx, span := m.tracer.Start(ctx, "cache.Manager.Read", trace.WithAttributes(
		attribute.String("zwyx.url", req.URL),
	))
	defer span.End()

	out, err := m.read(ctx, req, graph)
	result := "hit"
	if err != nil {
		result = "miss"
		if !errors.Is(err, zwyxerr.ErrNotFound) {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	m.metrics.reads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	span.SetAttributes(attribute.String("zwyx.read", result))
	return out, err
}

func (m *Manager) read(ctx context.Context, req link.Request, graph *schema.Graph) (any, error) {
	raw, err := m.Pointer(ctx, req)
	if err != nil {
		return nil, err
	}

	r := &reader{ctx: ctx, cache: m.cache, graph: graph, expanding: make(map[string]bool)}

	tree, ok := asTree(raw)
	if !ok {
		return nil, zwyxerr.Internal("Manager.Read", fmt.Errorf("malformed pointer of type %T", raw))
	}
	if root, ok := tree[normalizer.RootPath]; ok && len(tree) == 1 {
		return r.node(root)
	}
	return r.node(tree)
}

type reader struct {
	ctx       context.Context
	cache     Cache
	graph     *schema.Graph
	expanding map[string]bool
}

func (r *reader) node(v any) (any, error) {
	if leaf, ok := asLeaf(v); ok {
		return r.leaf(leaf)
	}
	tree, ok := asTree(v)
	if !ok {
		return nil, zwyxerr.Internal("Manager.Read", fmt.Errorf("malformed pointer node of type %T", v))
	}

	out := make(map[string]any, len(tree))
	for k, child := range tree {
		value, err := r.node(child)
		if err != nil {
			return nil, err
		}
		out[k] = value
	}
	return out, nil
}

func (r *reader) leaf(leaf PointerLeaf) (any, error) {
	entity, ok := r.graph.Entity(leaf.Schema)
	if !ok {
		return nil, zwyxerr.UnknownEntity("Manager.Read", leaf.Schema)
	}

	switch ids := leaf.IDs.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			record, err := r.entity(entity, id)
			if err != nil {
				return nil, err
			}
			out = append(out, record)
		}
		return out, nil
	default:
		return r.entity(entity, ids)
	}
}

// entity loads and expands one entity.
func (r *reader) entity(entity *schema.Entity, id any) (map[string]any, error) {
	key := normalizer.EntityKey(entity.Name, id)
	raw, err := r.cache.Get(r.ctx, key)
	if err != nil {
		return nil, err
	}
	stored, ok := raw.(map[string]any)
	if !ok {
		return nil, zwyxerr.Internal("Manager.Read", fmt.Errorf("entity %s is a %T", key, raw))
	}

	out := make(map[string]any, len(stored))
	for k, v := range stored {
		out[k] = v
	}

	r.expanding[key] = true
	defer delete(r.expanding, key)

	for _, rel := range entity.Relations {
		value, present := out[rel.Field]
		if !present || value == nil {
			continue
		}
		if list, ok := value.([]any); ok {
			expanded := make([]any, len(list))
			for i, item := range list {
				if expanded[i], err = r.related(rel.Target, item); err != nil {
					return nil, err
				}
			}
			out[rel.Field] = expanded
			continue
		}
		if out[rel.Field], err = r.related(rel.Target, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// related expands a relation value. Embedded objects, cycles and entities
// missing from the cache are returned unchanged.
func (r *reader) related(target *schema.Entity, value any) (any, error) {
	if _, embedded := value.(map[string]any); embedded {
		return value, nil
	}
	if r.expanding[normalizer.EntityKey(target.Name, value)] {
		return value, nil
	}

	record, err := r.entity(target, value)
	if errors.Is(err, zwyxerr.ErrNotFound) {
		return value, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
