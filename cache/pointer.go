package cache

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
)

// PointerLeaf names the entities found at one response path. IDs is nil
// for a null value, a list for array paths and a single identity otherwise.
type PointerLeaf struct {
	IDs    any    `json:"ids" msgpack:"ids"`
	Schema string `json:"schema" msgpack:"schema"`
}

// Pointer is the tree stored under a request key. Its shape follows the
// response; leaves are PointerLeaf values. Flat routes store a single leaf
// under normalizer.RootPath.
type Pointer map[string]any

// requestKey fixes the field order of the serialized request.
type requestKey struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// RequestKey is the cache key of the pointer answering req: the JSON object
// {"url","method","headers"} in that order, headers omitted when empty and
// sorted by name otherwise.
func RequestKey(req link.Request) (string, error) {
	b, err := json.Marshal(requestKey{
		URL:     req.URL,
		Method:  req.NormalizedMethod(),
		Headers: req.Headers,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Ambiguity describes a singular path that produced several identities.
type Ambiguity struct {
	Path   string
	Schema string
	IDs    []any
}

// BuildPointer folds the path entries of n into a pointer tree. Singular
// paths holding several identities keep the first; each such path is
// reported in the returned slice.
func BuildPointer(n *normalizer.Normalized) (Pointer, []Ambiguity) {
	paths := make([]string, 0, len(n.PathIDs))
	for p := range n.PathIDs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	tree := Pointer{}
	var warnings []Ambiguity
	for _, path := range paths {
		entry := n.PathIDs[path]
		ids, ambiguous := leafIDs(entry)
		if ambiguous {
			warnings = append(warnings, Ambiguity{Path: path, Schema: entry.Schema, IDs: entry.Values})
		}
		deepSet(tree, strings.Split(path, "."), PointerLeaf{IDs: ids, Schema: entry.Schema})
	}
	return tree, warnings
}

func leafIDs(entry normalizer.PathEntry) (ids any, ambiguous bool) {
	switch {
	case entry.Values == nil:
		return nil, false
	case entry.IsArray:
		out := make([]any, len(entry.Values))
		copy(out, entry.Values)
		return out, false
	case len(entry.Values) == 0:
		return nil, false
	default:
		return entry.Values[0], len(entry.Values) > 1
	}
}

func deepSet(tree map[string]any, segments []string, leaf PointerLeaf) {
	node := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = leaf
}

// asLeaf recognizes a pointer leaf, either as stored in memory or as
// decoded from JSON or MessagePack.
func asLeaf(v any) (PointerLeaf, bool) {
	switch t := v.(type) {
	case PointerLeaf:
		return t, true
	case *PointerLeaf:
		return *t, t != nil
	case map[string]any:
		if len(t) != 2 {
			return PointerLeaf{}, false
		}
		schema, ok := t["schema"].(string)
		if !ok {
			return PointerLeaf{}, false
		}
		ids, ok := t["ids"]
		if !ok {
			return PointerLeaf{}, false
		}
		return PointerLeaf{IDs: ids, Schema: schema}, true
	}
	return PointerLeaf{}, false
}

// asTree recognizes an internal pointer node.
func asTree(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Pointer:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}
