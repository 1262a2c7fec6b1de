package normalizer

import (
	"fmt"
	"log/slog"

	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Normalizer resolves route identifiers to shapes and normalizes responses.
// It is immutable after New and safe for concurrent use.
type Normalizer struct {
	graph   *schema.Graph
	routes  *routeTable
	process *Process
	logger  *slog.Logger
}

// Option configures a Normalizer.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	schemaOpts []schema.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSchemaOptions passes options to schema.Build.
func WithSchemaOptions(opts ...schema.Option) Option {
	return func(o *options) {
		o.schemaOpts = append(o.schemaOpts, opts...)
	}
}

// New builds the entity graph from defs and compiles routes. Every entity
// named by a route must exist in the graph.
func New(defs schema.Definitions, routes Routes, opts ...Option) (*Normalizer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	graph, err := schema.Build(defs, o.schemaOpts...)
	if err != nil {
		return nil, err
	}

	table, err := compileRoutes(routes)
	if err != nil {
		return nil, zwyxerr.Validation("normalizer.New", err)
	}
	for _, r := range routes {
		for _, leaf := range r.Shape.Leaves() {
			if _, ok := graph.Entity(leaf.Shape.schema); !ok {
				return nil, zwyxerr.UnknownEntity("normalizer.New", leaf.Shape.schema).
					WithContext(map[string]any{"route": r.Pattern})
			}
		}
	}

	return &Normalizer{
		graph:   graph,
		routes:  table,
		process: NewProcess(graph),
		logger:  o.logger.With("component", "normalizer"),
	}, nil
}

// Graph returns the compiled entity graph.
func (n *Normalizer) Graph() *schema.Graph {
	return n.graph
}

// Resolve returns the route matching identifier: an exact match first, then
// the first pattern in declaration order.
func (n *Normalizer) Resolve(identifier string) (Match, bool) {
	return n.routes.find(identifier)
}

// Normalize normalizes data for the route matching identifier. Without a
// matching route the identifier is taken as an entity type name.
func (n *Normalizer) Normalize(identifier string, data any) (*Normalized, error) {
	m, ok := n.routes.find(identifier)
	if !ok {
		n.logger.Debug("no route matched, using identifier as entity", "identifier", identifier)
		return n.process.Normalize(identifier, data, RootPath)
	}

	n.logger.Debug("route matched", "identifier", identifier, "route", m.Pattern, "shape", m.Shape.Kind().String())
	if m.Shape.IsLeaf() {
		return n.process.Normalize(m.Shape.schema, data, RootPath)
	}
	return n.process.DeepNormalize(m.Shape, data)
}

// ReconstructionInfo describes one leaf of a route shape.
type ReconstructionInfo struct {
	// Path is the dot-separated response path; empty for flat routes.
	Path    string
	Schema  string
	IsArray bool
}

// ReconstructionInfo lists the leaves of the route matching identifier, so
// callers know which entity types and paths answer it. Without a matching
// route the identifier is reported as a flat entity type if it exists.
func (n *Normalizer) ReconstructionInfo(identifier string) ([]ReconstructionInfo, bool) {
	m, ok := n.routes.find(identifier)
	if !ok {
		if _, known := n.graph.Entity(identifier); !known {
			return nil, false
		}
		return []ReconstructionInfo{{Schema: identifier}}, true
	}

	leaves := m.Shape.Leaves()
	out := make([]ReconstructionInfo, 0, len(leaves))
	for _, leaf := range leaves {
		out = append(out, ReconstructionInfo{
			Path:    leaf.Path,
			Schema:  leaf.Shape.schema,
			IsArray: leaf.Shape.kind == KindFlatArray,
		})
	}
	return out, true
}

func (r ReconstructionInfo) String() string {
	name := r.Schema
	if r.IsArray {
		name = "[" + name + "]"
	}
	if r.Path == "" {
		return name
	}
	return fmt.Sprintf("%s=%s", r.Path, name)
}
