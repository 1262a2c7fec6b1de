// Package zwyx is a client-side normalization cache for REST APIs.
//
// Responses are split into entities keyed by type and identity, so the same
// user returned by /users/1 and inside /feed is stored once, and a change
// written by either request reaches every subscriber of that user.
//
// # Concepts
//
//   - Entity definitions (package schema) declare which attributes of an
//     entity reference other entities.
//   - Routes (package normalizer) map URL paths such as "/users/:id" to the
//     shape of their response: one entity, a list, or an object whose keys
//     hold entities.
//   - Links (package link) form the transport chain. link.HTTP performs the
//     actual call.
//   - The cache (package cache) holds entities under "<type>:<id>" and, for
//     GET requests, a pointer under the serialized request that records
//     which entities answered it.
//
// # Getting Started
//
//	client, err := zwyx.New(
//	    zwyx.WithSchema(
//	        schema.Definitions{
//	            "users":  {Fields: map[string]schema.Field{"photo": schema.One("photos")}},
//	            "photos": {},
//	        },
//	        normalizer.Routes{
//	            {Pattern: "/users/:id", Shape: normalizer.Flat("users")},
//	            {Pattern: "/users", Shape: normalizer.FlatArray("users")},
//	        },
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Emit(ctx, link.Request{URL: "https://api.example.com/users/1"})
//
//	// later, without a network call
//	user, err := client.Read(ctx, link.Request{URL: "https://api.example.com/users/1"})
//
// # Configuration
//
// The same setup can be loaded from a zwyx.yaml file with config.Load and
// passed to NewFromConfig, which also selects the cache backend (memory,
// redis or noop).
package zwyx
