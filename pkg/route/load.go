package route

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/apirisk/apirisk/pkg/jsonutil"
)

// ErrNoRoutes indicates a routes file that parsed cleanly but contained
// no route entries.
var ErrNoRoutes = errors.New("route: no routes found")

// document is the on-disk shape of a route snapshot. Discovery tools emit
// either a bare list or an object with a "routes" key; both are accepted.
type document struct {
	Routes []Route `json:"routes" yaml:"routes"`
}

// LoadFile reads a route snapshot from a JSON or YAML file, selected by
// extension (.json, .yaml, .yml).
func LoadFile(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routes file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return LoadJSON(data)
	}
}

// LoadJSON parses routes from JSON: either a bare array of routes or an
// object with a top-level "routes" array.
func LoadJSON(data []byte) ([]Route, error) {
	var routes []Route
	if err := jsonutil.Unmarshal(data, &routes); err == nil {
		return validate(routes)
	}

	var doc document
	if err := jsonutil.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing routes JSON: %w", err)
	}
	return validate(doc.Routes)
}

// LoadYAML parses routes from YAML with the same shapes LoadJSON accepts.
func LoadYAML(data []byte) ([]Route, error) {
	var routes []Route
	if err := yaml.Unmarshal(data, &routes); err == nil {
		return validate(routes)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing routes YAML: %w", err)
	}
	return validate(doc.Routes)
}

func validate(routes []Route) ([]Route, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	for i, r := range routes {
		if r.Path == "" || r.Method == "" {
			return nil, fmt.Errorf("route %d: path and method are required", i)
		}
		routes[i].Method = strings.ToUpper(r.Method)
	}
	return routes, nil
}
