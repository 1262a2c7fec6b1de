// Package schema compiles entity definitions into a resolved entity graph.
//
// A definition maps each entity type to its relation fields. A field names
// either a single related entity (to-one) or a one-element list naming the
// related entity (to-many). The reserved field "id" names the attribute that
// carries the entity identity; it defaults to "id".
//
// # Declaring Entities
//
// In Go:
//
//	defs := schema.Definitions{
//		"users": {
//			Fields: map[string]schema.Field{
//				"photo":   schema.One("photos"),
//				"friends": schema.Many("users"),
//			},
//		},
//		"photos": {IDAttribute: "uuid"},
//	}
//
// In YAML (JSON works the same way):
//
//	users:
//	  photo: photos
//	  friends: [users]
//	photos:
//	  id: uuid
//
// # Building the Graph
//
// Build resolves every relation to its target entity. Cycles, including
// self references, are allowed; each type is resolved once.
//
//	graph, err := schema.Build(defs)
//	users, _ := graph.Entity("users")
//	rel, _ := users.Relation("friends") // rel.Many == true, rel.Target == users
//
// A relation that names an undeclared type declares it implicitly with the
// default identity attribute. Pass Strict to reject such relations instead.
package schema
