package normalizer

// RootPath is the path recorded for flat routes.
const RootPath = "$root"

// PathEntry records which identities were found at one response path.
type PathEntry struct {
	Schema string `json:"schema"`

	// Values is nil when the response held null at the path, and an empty
	// slice when the path held data without identities.
	Values []any `json:"values"`

	IsArray bool `json:"isArray"`
}

// Normalized is the flat form of one response.
type Normalized struct {
	// Entities maps type -> identity key -> record. Relation fields in a
	// record hold identities instead of nested objects.
	Entities map[string]map[string]map[string]any `json:"entities"`

	// IDs lists identities per type in first-seen order, without duplicates.
	IDs map[string][]any `json:"ids"`

	PathIDs map[string]PathEntry `json:"pathIds"`
}

func newNormalized() *Normalized {
	return &Normalized{
		Entities: make(map[string]map[string]map[string]any),
		IDs:      make(map[string][]any),
		PathIDs:  make(map[string]PathEntry),
	}
}

// EntityCount returns the number of distinct entities across all types.
func (n *Normalized) EntityCount() int {
	count := 0
	for _, records := range n.Entities {
		count += len(records)
	}
	return count
}

// IsFlat reports whether the result came from a flat route.
func (n *Normalized) IsFlat() bool {
	_, ok := n.PathIDs[RootPath]
	return ok && len(n.PathIDs) == 1
}

// seeID appends id to the type's identity list unless already present.
func (n *Normalized) seeID(entity string, id any) {
	records, ok := n.Entities[entity]
	if !ok {
		records = make(map[string]map[string]any)
		n.Entities[entity] = records
	}
	key := IDKey(id)
	if _, seen := records[key]; seen {
		return
	}
	records[key] = nil
	n.IDs[entity] = append(n.IDs[entity], id)
}

// putRecord stores record, shallow-merging over an earlier occurrence of
// the same identity.
func (n *Normalized) putRecord(entity string, id any, record map[string]any) {
	n.seeID(entity, id)
	key := IDKey(id)
	existing := n.Entities[entity][key]
	if existing == nil {
		n.Entities[entity][key] = record
		return
	}
	for k, v := range record {
		existing[k] = v
	}
}

// Merge combines results field-wise. Identities are deduplicated in
// first-seen order, a later record for the same identity replaces the
// earlier one, and path entries are united by path.
func Merge(results ...*Normalized) *Normalized {
	out := newNormalized()
	for _, r := range results {
		if r == nil {
			continue
		}
		for path, entry := range r.PathIDs {
			out.PathIDs[path] = entry
		}
		for entity, ids := range r.IDs {
			for _, id := range ids {
				out.seeID(entity, id)
			}
			for key, record := range r.Entities[entity] {
				out.Entities[entity][key] = record
			}
		}
	}
	return out
}
