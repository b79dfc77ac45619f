package rules

import (
	"fmt"
	"strings"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// Performance rules PERF-001 through PERF-004.

func performanceRules() []Rule {
	return []Rule{
		&routeRule{
			meta: meta{
				id:          "PERF-001",
				category:    risk.CategoryPerformance,
				severity:    risk.SeverityMedium,
				title:       "Potential missing pagination",
				description: "Collection endpoints without pagination parameters.",
			},
			eval: evalMissingPagination,
		},
		&routeRule{
			meta: meta{
				id:          "PERF-002",
				category:    risk.CategoryPerformance,
				severity:    risk.SeverityMedium,
				title:       "Unbounded query parameters",
				description: "Query params without max value constraint.",
			},
			eval: evalUnboundedQuery,
		},
		&routeRule{
			meta: meta{
				id:          "PERF-003",
				category:    risk.CategoryPerformance,
				severity:    risk.SeverityMedium,
				title:       "N+1 query risk on nested resource",
				description: "Nested resource endpoints that may trigger N+1 database queries.",
			},
			eval: evalNestedResourceQueries,
		},
		&routeRule{
			meta: meta{
				id:          "PERF-004",
				category:    risk.CategoryPerformance,
				severity:    risk.SeverityLow,
				title:       "Missing caching headers on GET endpoint",
				description: "GET endpoints without apparent caching strategy.",
			},
			eval: evalMissingCaching,
		},
	}
}

var paginationParamNames = map[string]struct{}{
	"limit": {}, "page": {}, "per_page": {}, "cursor": {}, "offset": {}, "page_size": {},
}

func evalMissingPagination(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "GET" {
		return nil
	}
	for _, name := range rt.ParamNames("query") {
		if _, paginated := paginationParamNames[name]; paginated {
			return nil
		}
	}
	severity := m.severity
	for _, keyword := range []string{"/search", "/list", "/all"} {
		if strings.Contains(rt.Path, keyword) {
			severity = risk.SeverityHigh
			break
		}
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Large collection endpoints without pagination can exhaust resources.",
		Recommendation: "Introduce limit/offset or cursor-based pagination for collection endpoints.",
		Source:         m.id,
		References:     []string{"https://restfulapi.net/pagination/"},
	}
}

var boundedParamNames = map[string]struct{}{
	"limit": {}, "page_size": {}, "per_page": {}, "size": {},
}

func evalUnboundedQuery(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "GET" {
		return nil
	}
	for _, p := range rt.QueryParams() {
		name := strings.ToLower(p.Name)
		if _, bounded := boundedParamNames[name]; !bounded {
			continue
		}
		// Only flag when there is an explicit schema block without maximum.
		if p.Schema == nil {
			continue
		}
		if max, ok := p.Schema["maximum"]; ok && max != nil {
			continue
		}
		return &risk.Risk{
			Category:       m.category,
			Severity:       m.severity,
			Route:          rt.Identity(),
			Title:          m.title,
			Description:    fmt.Sprintf("Parameter '%s' has no maximum constraint, allowing clients to request unbounded result sets.", name),
			Recommendation: fmt.Sprintf("Set a maximum value for '%s' (e.g., maximum: 100) to prevent resource exhaustion.", name),
			Source:         m.id,
		}
	}
	return nil
}

func evalNestedResourceQueries(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "GET" {
		return nil
	}
	segments := rt.PathSegments()
	paramCount := 0
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			paramCount++
		}
	}
	if len(segments) < 3 || paramCount < 1 {
		return nil
	}
	// Collection after a param, e.g. /users/{id}/posts.
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || i+1 >= len(segments) || strings.HasPrefix(segments[i+1], "{") {
			continue
		}
		return &risk.Risk{
			Category:       m.category,
			Severity:       m.severity,
			Route:          rt.Identity(),
			Title:          m.title,
			Description:    "Nested resource endpoint may require eager loading to avoid N+1 queries.",
			Recommendation: "Use eager loading (JOIN/prefetch) for nested resource endpoints. Consider denormalization for frequently accessed nested data.",
			Source:         m.id,
		}
	}
	return nil
}

var cacheHeaderNames = map[string]struct{}{
	"cache-control": {}, "etag": {}, "last-modified": {},
}

func evalMissingCaching(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "GET" {
		return nil
	}
	for _, resp := range rt.Responses {
		for header := range resp.Headers {
			if _, cached := cacheHeaderNames[strings.ToLower(header)]; cached {
				return nil
			}
		}
	}
	// Stable resource endpoints only, never search or listing paths.
	for _, pattern := range []string{"/search", "/list", "/recent", "/latest"} {
		if strings.Contains(rt.Path, pattern) {
			return nil
		}
	}
	if !strings.Contains(rt.Path, "{") {
		return nil
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Specific resource GET endpoints benefit from caching headers to reduce load.",
		Recommendation: "Add Cache-Control, ETag, or Last-Modified headers for cacheable GET endpoints.",
		Source:         m.id,
	}
}
