// Package normalizer flattens nested JSON responses into entity tables.
//
// A Normalizer couples an entity graph (see package schema) with an
// ordered route table. Each route maps a request path, literal or with
// ":param" segments, to a Shape:
//
//   - Flat("users"): the response is one user
//   - FlatArray("users"): the response is a list of users
//   - Nested(Key("online", FlatArray("users")), ...): the response is an
//     object whose keys hold entities
//
// Normalizing a response yields a Normalized value with three tables:
// Entities (type -> identity -> record, relations replaced by identities),
// IDs (type -> identities in first-seen order) and PathIDs (response path ->
// identities found there). PathIDs is what allows the original response to
// be rebuilt from a flat store.
//
//	n, err := normalizer.New(defs, normalizer.Routes{
//		{Pattern: "/users/:id", Shape: normalizer.Flat("users")},
//		{Pattern: "/users", Shape: normalizer.FlatArray("users")},
//	})
//	out, err := n.Normalize("/users/1?expand=photo", data)
//
// Identifiers that match no route are taken as entity type names.
package normalizer
