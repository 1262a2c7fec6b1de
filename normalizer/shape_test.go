package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

const routesYAML = `
/users/:id: users
/users: [users]
/feed:
  online: [users]
  offline:
    friends: [users]
    captain: users
`

func wantFeedTable() Routes {
	return Routes{
		{Pattern: "/users/:id", Shape: Flat("users")},
		{Pattern: "/users", Shape: FlatArray("users")},
		{Pattern: "/feed", Shape: Nested(
			Key("online", FlatArray("users")),
			Key("offline", Nested(
				Key("friends", FlatArray("users")),
				Key("captain", Flat("users")),
			)),
		)},
	}
}

func TestRoutesYAMLKeepsOrder(t *testing.T) {
	var routes Routes
	require.NoError(t, yaml.Unmarshal([]byte(routesYAML), &routes))
	assert.Equal(t, wantFeedTable(), routes)
}

func TestRoutesJSONKeepsOrder(t *testing.T) {
	var routes Routes
	require.NoError(t, json.Unmarshal([]byte(`{
		"/users/:id": "users",
		"/users": ["users"],
		"/feed": {"online": ["users"], "offline": {"friends": ["users"], "captain": "users"}}
	}`), &routes))
	assert.Equal(t, wantFeedTable(), routes)
}

func TestShapeRoundTrip(t *testing.T) {
	shape := wantFeedTable()[2].Shape

	b, err := json.Marshal(shape)
	require.NoError(t, err)
	assert.Equal(t, `{"online":["users"],"offline":{"friends":["users"],"captain":"users"}}`, string(b))

	var back Shape
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, shape, back)

	y, err := yaml.Marshal(shape)
	require.NoError(t, err)
	var fromYAML Shape
	require.NoError(t, yaml.Unmarshal(y, &fromYAML))
	assert.Equal(t, shape, fromYAML)
}

func TestShapeDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty list", `[]`},
		{"two entities", `["users", "photos"]`},
		{"number", `1`},
		{"empty object", `{}`},
		{"nested number", `{"a": 1}`},
		{"trailing data", `"users" "photos"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Shape
			err := json.Unmarshal([]byte(tt.json), &s)
			require.Error(t, err)
		})
	}

	var s Shape
	err := yaml.Unmarshal([]byte("[users, photos]"), &s)
	assert.ErrorIs(t, err, zwyxerr.ErrInvalidRoute)
}

func TestShapeLeaves(t *testing.T) {
	assert.Equal(t, []Leaf{{Shape: Flat("users")}}, Flat("users").Leaves())

	leaves := wantFeedTable()[2].Shape.Leaves()
	paths := make([]string, len(leaves))
	for i, l := range leaves {
		paths[i] = l.Path
	}
	assert.Equal(t, []string{"online", "offline.friends", "offline.captain"}, paths)
	assert.Equal(t, "nested", KindNested.String())
}

func TestRoutesFromMapSorted(t *testing.T) {
	routes := RoutesFromMap(map[string]Shape{
		"/b": Flat("users"),
		"/a": FlatArray("users"),
	})
	require.Len(t, routes, 2)
	assert.Equal(t, "/a", routes[0].Pattern)
	assert.Equal(t, "/b", routes[1].Pattern)
}

func TestCompilePatternEscapesLiterals(t *testing.T) {
	re, params, err := compilePattern("/v1.0/users/:id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, params)
	assert.True(t, re.MatchString("/v1.0/users/7"))
	assert.False(t, re.MatchString("/v1x0/users/7"))
	assert.True(t, re.MatchString("/v1.0/users/7?full=true"))
}
