package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Route binds a route identifier to a shape. The identifier is a literal
// path or a pattern whose ":name" segments match one path segment.
type Route struct {
	Pattern string
	Shape   Shape
}

// Routes is an ordered route table. Patterns are tried in order.
type Routes []Route

// RoutesFromMap builds a table from a map, ordered by pattern. Use a Routes
// literal when pattern precedence matters.
func RoutesFromMap(m map[string]Shape) Routes {
	patterns := make([]string, 0, len(m))
	for p := range m {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	out := make(Routes, 0, len(m))
	for _, p := range patterns {
		out = append(out, Route{Pattern: p, Shape: m[p]})
	}
	return out
}

// UnmarshalYAML decodes a mapping of pattern to shape, keeping its order.
func (r *Routes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*r = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: routes must be a mapping (line %d)", zwyxerr.ErrInvalidRoute, node.Line)
	}

	out := make(Routes, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var shape Shape
		if err := shape.UnmarshalYAML(node.Content[i+1]); err != nil {
			return fmt.Errorf("route %q: %w", node.Content[i].Value, err)
		}
		out = append(out, Route{Pattern: node.Content[i].Value, Shape: shape})
	}
	*r = out
	return nil
}

// UnmarshalJSON decodes an object of pattern to shape, keeping key order.
func (r *Routes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("%w: routes must be an object", zwyxerr.ErrInvalidRoute)
	}

	var out Routes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", zwyxerr.ErrInvalidRoute, err)
		}
		pattern := keyTok.(string)
		shape, err := decodeShape(dec)
		if err != nil {
			return fmt.Errorf("route %q: %w", pattern, err)
		}
		if err := shape.validate(); err != nil {
			return fmt.Errorf("route %q: %w", pattern, err)
		}
		out = append(out, Route{Pattern: pattern, Shape: shape})
	}
	*r = out
	return nil
}

var paramPattern = regexp.MustCompile(`:\w+`)

type compiledRoute struct {
	Route
	re     *regexp.Regexp
	params []string
}

type routeTable struct {
	exact   map[string]int
	ordered []compiledRoute
}

func compileRoutes(routes Routes) (*routeTable, error) {
	t := &routeTable{
		exact:   make(map[string]int, len(routes)),
		ordered: make([]compiledRoute, 0, len(routes)),
	}
	for i, r := range routes {
		if r.Pattern == "" {
			return nil, fmt.Errorf("%w: empty route pattern", zwyxerr.ErrInvalidRoute)
		}
		if _, dup := t.exact[r.Pattern]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", zwyxerr.ErrInvalidRoute, r.Pattern)
		}
		if err := r.Shape.validate(); err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Pattern, err)
		}

		re, params, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, err
		}
		t.exact[r.Pattern] = i
		t.ordered = append(t.ordered, compiledRoute{Route: r, re: re, params: params})
	}
	return t, nil
}

// compilePattern turns "/users/:id" into ^/users/([^/?]+)(?:\?.*)?$.
func compilePattern(pattern string) (*regexp.Regexp, []string, error) {
	var (
		sb     strings.Builder
		params []string
		last   int
	)
	sb.WriteByte('^')
	for _, loc := range paramPattern.FindAllStringIndex(pattern, -1) {
		sb.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		sb.WriteString(`([^/?]+)`)
		params = append(params, pattern[loc[0]+1:loc[1]])
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(pattern[last:]))
	sb.WriteString(`(?:\?.*)?$`)

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q: %v", zwyxerr.ErrInvalidRoute, pattern, err)
	}
	return re, params, nil
}

// Match is a resolved route with its captured parameters.
type Match struct {
	Route
	Params map[string]string
}

func (t *routeTable) find(identifier string) (Match, bool) {
	if i, ok := t.exact[identifier]; ok {
		return Match{Route: t.ordered[i].Route}, true
	}
	for _, r := range t.ordered {
		sub := r.re.FindStringSubmatch(identifier)
		if sub == nil {
			continue
		}
		m := Match{Route: r.Route}
		if len(r.params) > 0 {
			m.Params = make(map[string]string, len(r.params))
			for i, name := range r.params {
				m.Params[name] = sub[i+1]
			}
		}
		return m, true
	}
	return Match{}, false
}
