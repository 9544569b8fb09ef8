package clientsync

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultManifest []byte

// Route carries the navigation requirements of one client route. Path
// segments starting with ':' match any single segment.
type Route struct {
	Path          string `yaml:"path"`
	Name          string `yaml:"name"`
	RequiresAuth  bool   `yaml:"requiresAuth"`
	RequiresGuest bool   `yaml:"requiresGuest"`
	ShowSidebar   bool   `yaml:"showSidebar"`
}

type manifest struct {
	Routes []Route `yaml:"routes"`
}

// Routes is an immutable route table, safe for concurrent use.
type Routes struct {
	routes []Route
}

// NewRoutes validates routes. A repeated path keeps its first definition.
func NewRoutes(routes ...Route) (*Routes, error) {
	seen := make(map[string]bool, len(routes))
	out := make([]Route, 0, len(routes))
	for i, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("%w: route %d: path %q must start with /", ErrInvalidManifest, i, r.Path)
		}
		r.Path = normalizePath(r.Path)
		if seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		out = append(out, r)
	}
	return &Routes{routes: out}, nil
}

// LoadRoutes parses a YAML manifest.
func LoadRoutes(r io.Reader) (*Routes, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return NewRoutes(m.Routes...)
}

// LoadRoutesFile parses the manifest at path. An empty path selects the
// built-in table.
func LoadRoutesFile(path string) (*Routes, error) {
	if path == "" {
		return DefaultRoutes()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open route manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadRoutes(f)
}

// DefaultRoutes returns the built-in route table.
func DefaultRoutes() (*Routes, error) {
	return LoadRoutes(bytes.NewReader(defaultManifest))
}

// All returns a copy of the table in declaration order.
func (rs *Routes) All() []Route {
	if rs == nil {
		return nil
	}
	return append([]Route(nil), rs.routes...)
}

// Match finds the route for target, which may carry a query string or
// fragment. Static routes win over parameterized ones.
func (rs *Routes) Match(target string) (Route, bool) {
	if rs == nil {
		return Route{}, false
	}
	path := target
	if u, err := url.Parse(target); err == nil {
		path = u.Path
	}
	path = normalizePath(path)

	var (
		best  Route
		found bool
		score = -1
	)
	for _, r := range rs.routes {
		if s, ok := matchPath(r.Path, path); ok && s > score {
			best, found, score = r, true, s
		}
	}
	return best, found
}

// matchPath returns the number of static segments matched.
func matchPath(pattern, path string) (int, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	ts := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(ts) {
		return 0, false
	}
	static := 0
	for i, seg := range ps {
		if strings.HasPrefix(seg, ":") {
			if ts[i] == "" {
				return 0, false
			}
			continue
		}
		if seg != ts[i] {
			return 0, false
		}
		static++
	}
	return static, true
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
