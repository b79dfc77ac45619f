package rules

import (
	"fmt"
	"strings"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// Reliability rules REL-001 through REL-004. REL-003 and REL-004 are
// aggregate rules that inspect the route set as a whole.

func reliabilityRules() []Rule {
	return []Rule{
		&routeRule{
			meta: meta{
				id:          "REL-001",
				category:    risk.CategoryReliability,
				severity:    risk.SeverityLow,
				title:       "Deprecated route",
				description: "Deprecated endpoints should be removed or replaced.",
			},
			eval: evalDeprecatedRoute,
		},
		&routeRule{
			meta: meta{
				id:          "REL-002",
				category:    risk.CategoryReliability,
				severity:    risk.SeverityLow,
				title:       "Missing error response schema",
				description: "Endpoints without defined error response schemas.",
			},
			eval: evalMissingErrorSchema,
		},
		&aggregateRule{
			meta: meta{
				id:          "REL-003",
				category:    risk.CategoryReliability,
				severity:    risk.SeverityLow,
				title:       "Inconsistent path naming conventions",
				description: "API paths use mixed naming conventions.",
			},
			evalAll: evalInconsistentNaming,
		},
		&aggregateRule{
			meta: meta{
				id:          "REL-004",
				category:    risk.CategoryReliability,
				severity:    risk.SeverityMedium,
				title:       "Missing health check endpoint",
				description: "No health/readiness endpoint found.",
			},
			evalAll: evalMissingHealthCheck,
		},
	}
}

func evalDeprecatedRoute(m meta, rt route.Route) *risk.Risk {
	if !rt.Deprecated() {
		return nil
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Deprecated endpoints should be removed or replaced to avoid drift.",
		Recommendation: "Plan to remove or replace deprecated endpoints and update clients.",
		Source:         m.id,
	}
}

func evalMissingErrorSchema(m meta, rt route.Route) *risk.Risk {
	if len(rt.Responses) == 0 {
		return nil
	}
	for status := range rt.Responses {
		if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
			return nil
		}
	}
	// GETs are less critical, flag mutation endpoints only.
	if rt.Method == "GET" {
		return nil
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Mutation endpoints without defined error responses make client error handling unreliable.",
		Recommendation: "Define 400, 404, and 500 error response schemas with structured error bodies.",
		Source:         m.id,
	}
}

func evalInconsistentNaming(m meta, routes []route.Route) []risk.Risk {
	counts := map[string]int{}
	var order []string
	record := func(style string) {
		if _, seen := counts[style]; !seen {
			order = append(order, style)
		}
		counts[style]++
	}
	for _, rt := range routes {
		for _, seg := range rt.PathSegments() {
			if strings.HasPrefix(seg, "{") {
				continue
			}
			switch {
			case strings.Contains(seg, "_"):
				record("snake_case")
			case strings.Contains(seg, "-"):
				record("kebab-case")
			case seg != strings.ToLower(seg):
				record("camelCase")
			default:
				record("lowercase")
			}
		}
	}
	var named []string
	for _, style := range order {
		if style != "lowercase" {
			named = append(named, fmt.Sprintf("%s(%d)", style, counts[style]))
		}
	}
	if len(named) <= 1 {
		return nil
	}
	return []risk.Risk{{
		Category:       m.category,
		Severity:       m.severity,
		Title:          m.title,
		Description:    fmt.Sprintf("API paths use mixed naming conventions: %s. This impacts developer experience.", strings.Join(named, ", ")),
		Recommendation: "Standardize on one naming convention (kebab-case is recommended for URLs).",
		Source:         m.id,
	}}
}

var healthPathPatterns = []string{"/health", "/healthz", "/ready", "/readiness", "/ping", "/status", "/livez"}

func evalMissingHealthCheck(m meta, routes []route.Route) []risk.Risk {
	for _, rt := range routes {
		path := strings.TrimRight(strings.ToLower(rt.Path), "/")
		for _, pattern := range healthPathPatterns {
			if strings.Contains(path, pattern) {
				return nil
			}
		}
	}
	return []risk.Risk{{
		Category:       m.category,
		Severity:       m.severity,
		Title:          m.title,
		Description:    "No health check endpoint found. Health endpoints are essential for load balancers and orchestrators.",
		Recommendation: "Add a /health or /healthz endpoint that returns 200 when the service is ready.",
		Source:         m.id,
	}}
}
