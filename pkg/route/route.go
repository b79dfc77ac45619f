// Package route models discovered API endpoints, the read-only input the
// rule engine evaluates. Routes are produced by external discovery tooling
// (OpenAPI parsers, code analysis, runtime capture) and loaded from JSON or
// YAML snapshots.
package route

import (
	"sort"
	"strings"
)

// Route source values as emitted by discovery tooling.
const (
	SourceOpenAPI = "openapi"
	SourceCode    = "code_analysis"
	SourceRuntime = "runtime"
	SourceManual  = "manual"
)

// Param describes a single route parameter in a given location.
type Param struct {
	Name     string         `json:"name" yaml:"name"`
	In       string         `json:"in,omitempty" yaml:"in,omitempty"`
	Required bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Schema   map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	Content  map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
}

// Response describes one documented response of a route, keyed in
// Route.Responses by status code string ("200", "404", "default").
type Response struct {
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Headers     map[string]any `json:"headers,omitempty" yaml:"headers,omitempty"`
	Content     map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
}

// Route is the normalized representation of a discovered API endpoint.
// Identity is (Method, Path); everything else is advisory metadata.
type Route struct {
	Path         string              `json:"path" yaml:"path"`
	Method       string              `json:"method" yaml:"method"`
	AuthRequired bool                `json:"auth_required" yaml:"auth_required"`
	Summary      string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description  string              `json:"description,omitempty" yaml:"description,omitempty"`
	Tags         []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	Params       map[string][]Param  `json:"params,omitempty" yaml:"params,omitempty"`
	Responses    map[string]Response `json:"responses,omitempty" yaml:"responses,omitempty"`
	Source       string              `json:"source,omitempty" yaml:"source,omitempty"`
	Confidence   float64             `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Identity renders the route as "METHOD path", the form risks reference.
func (r Route) Identity() string {
	return r.Method + " " + r.Path
}

// Deprecated reports whether the route is marked deprecated in metadata.
func (r Route) Deprecated() bool {
	v, ok := r.Metadata["deprecated"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// QueryParams returns the parameters declared in the query location.
func (r Route) QueryParams() []Param {
	return r.Params["query"]
}

// BodyParams returns the request body descriptors, if any.
func (r Route) BodyParams() []Param {
	return r.Params["body"]
}

// AllParams returns every parameter across all locations, iterating
// locations in sorted order so the result is stable.
func (r Route) AllParams() []Param {
	locations := make([]string, 0, len(r.Params))
	for loc := range r.Params {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	var params []Param
	for _, loc := range locations {
		params = append(params, r.Params[loc]...)
	}
	return params
}

// ParamNames returns the lowercase names of every parameter in the given
// location. An empty location collects names across all locations.
func (r Route) ParamNames(location string) []string {
	var params []Param
	if location == "" {
		for _, list := range r.Params {
			params = append(params, list...)
		}
	} else {
		params = r.Params[location]
	}
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, strings.ToLower(p.Name))
	}
	return names
}

// HasTag reports whether the route carries the given tag.
func (r Route) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PathSegments splits the path into non-empty segments, preserving
// template placeholders like "{id}".
func (r Route) PathSegments() []string {
	parts := strings.Split(r.Path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
