package rules

import (
	"fmt"
	"strings"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// Security rules SEC-001 through SEC-008.

var mutationMethods = map[string]struct{}{
	"POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {},
}

func securityRules() []Rule {
	return []Rule{
		&routeRule{
			meta: meta{
				id:          "SEC-001",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityHigh,
				title:       "Unauthenticated mutation endpoint",
				description: "Mutation endpoints (POST/PUT/PATCH/DELETE) without authentication.",
			},
			eval: evalUnauthenticatedMutation,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-002",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityMedium,
				title:       "Missing CORS configuration indicators",
				description: "No CORS-related metadata found on cross-origin accessible endpoints.",
			},
			eval: evalMissingCORS,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-003",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityHigh,
				title:       "Path traversal risk",
				description: "File-related path parameters without apparent validation.",
			},
			eval: evalPathTraversal,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-004",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityMedium,
				title:       "Mass assignment risk",
				description: "PUT/PATCH endpoints without explicit field list in request body schema.",
			},
			eval: evalMassAssignment,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-005",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityMedium,
				title:       "Missing rate limiting on auth endpoint",
				description: "Authentication endpoints without apparent rate limiting.",
			},
			eval: evalMissingRateLimit,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-006",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityHigh,
				title:       "Sensitive data in query parameters",
				description: "Sensitive data (password, token, secret) passed via query string.",
			},
			eval: evalSensitiveQueryParams,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-007",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityMedium,
				title:       "Missing input validation on POST/PUT body",
				description: "Mutation endpoints without request body schema definition.",
			},
			eval: evalMissingInputValidation,
		},
		&routeRule{
			meta: meta{
				id:          "SEC-008",
				category:    risk.CategorySecurity,
				severity:    risk.SeverityHigh,
				title:       "Admin endpoint without elevated authentication",
				description: "Admin-related endpoints that may lack elevated authorization checks.",
			},
			eval: evalAdminWithoutAuth,
		},
	}
}

func evalUnauthenticatedMutation(m meta, rt route.Route) *risk.Risk {
	if _, mutating := mutationMethods[rt.Method]; !mutating || rt.AuthRequired {
		return nil
	}
	severity := m.severity
	if strings.Contains(rt.Path, "admin") {
		severity = risk.SeverityCritical
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Sensitive mutation endpoints should require authentication.",
		Recommendation: "Require authentication and authorization checks for mutation endpoints.",
		Source:         m.id,
		CWEID:          "CWE-306",
		OWASPTop10:     "A07:2021",
		References: []string{
			"https://cwe.mitre.org/data/definitions/306.html",
			"https://owasp.org/Top10/A07_Identification_and_Authentication_Failures/",
		},
	}
}

func evalMissingCORS(m meta, rt route.Route) *risk.Risk {
	// Heuristic: API endpoints that likely serve cross-origin requests.
	if rt.Method == "OPTIONS" || !strings.HasPrefix(rt.Path, "/api") {
		return nil
	}
	metadata := strings.ToLower(fmt.Sprint(rt.Metadata))
	for _, key := range []string{"cors", "access-control", "origin"} {
		if strings.Contains(metadata, key) {
			return nil
		}
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "API endpoints without CORS configuration may be inaccessible from browser clients or vulnerable to CSRF.",
		Recommendation: "Configure CORS headers for API endpoints that serve browser clients.",
		Source:         m.id,
		CWEID:          "CWE-942",
	}
}

var fileParamNames = map[string]struct{}{
	"file": {}, "filename": {}, "filepath": {}, "path": {}, "document": {}, "attachment": {},
}

func evalPathTraversal(m meta, rt route.Route) *risk.Risk {
	for _, p := range rt.AllParams() {
		if _, risky := fileParamNames[strings.ToLower(p.Name)]; !risky {
			continue
		}
		return &risk.Risk{
			Category:       m.category,
			Severity:       m.severity,
			Route:          rt.Identity(),
			Title:          m.title,
			Description:    fmt.Sprintf("Parameter '%s' may allow path traversal if not validated.", p.Name),
			Recommendation: "Validate and sanitize file path parameters. Use allowlists and prevent directory traversal sequences.",
			Source:         m.id,
			CWEID:          "CWE-22",
			OWASPTop10:     "A01:2021",
		}
	}
	return nil
}

func evalMassAssignment(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "PUT" && rt.Method != "PATCH" {
		return nil
	}
	for _, body := range rt.BodyParams() {
		for _, media := range body.Content {
			mediaMap, ok := media.(map[string]any)
			if !ok {
				continue
			}
			schema, ok := mediaMap["schema"].(map[string]any)
			if !ok {
				continue
			}
			if props, ok := schema["properties"].(map[string]any); ok && len(props) > 0 {
				return nil // has explicit fields
			}
		}
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Update endpoints without explicit field lists may allow mass assignment attacks.",
		Recommendation: "Define explicit request body schemas with allowed fields. Reject unexpected properties.",
		Source:         m.id,
		CWEID:          "CWE-915",
		OWASPTop10:     "A08:2021",
	}
}

var authPathHints = []string{"login", "signin", "auth", "token", "register", "signup", "password", "reset"}

func evalMissingRateLimit(m meta, rt route.Route) *risk.Risk {
	path := strings.ToLower(rt.Path)
	hit := false
	for _, hint := range authPathHints {
		if strings.Contains(path, hint) {
			hit = true
			break
		}
	}
	if !hit || (rt.Method != "POST" && rt.Method != "PUT") {
		return nil
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Authentication endpoints without rate limiting are vulnerable to brute-force attacks.",
		Recommendation: "Implement rate limiting on authentication endpoints (e.g., 5 attempts per minute).",
		Source:         m.id,
		CWEID:          "CWE-307",
		OWASPTop10:     "A07:2021",
	}
}

var sensitiveParamNames = map[string]struct{}{
	"password": {}, "passwd": {}, "token": {}, "secret": {},
	"api_key": {}, "apikey": {}, "access_token": {},
}

func evalSensitiveQueryParams(m meta, rt route.Route) *risk.Risk {
	for _, p := range rt.QueryParams() {
		name := strings.ToLower(p.Name)
		if _, sensitive := sensitiveParamNames[name]; !sensitive {
			continue
		}
		return &risk.Risk{
			Category:       m.category,
			Severity:       m.severity,
			Route:          rt.Identity(),
			Title:          m.title,
			Description:    fmt.Sprintf("Parameter '%s' in query string may be logged or cached in browser history.", name),
			Recommendation: "Move sensitive parameters to request headers or body. Use Authorization header for tokens.",
			Source:         m.id,
			CWEID:          "CWE-598",
		}
	}
	return nil
}

var actionPathHints = []string{"login", "logout", "activate", "deactivate", "toggle", "approve", "reject"}

func evalMissingInputValidation(m meta, rt route.Route) *risk.Risk {
	if rt.Method != "POST" && rt.Method != "PUT" {
		return nil
	}
	if len(rt.BodyParams()) > 0 {
		return nil
	}
	// Simple actions legitimately take no body.
	path := strings.ToLower(rt.Path)
	for _, hint := range actionPathHints {
		if strings.Contains(path, hint) {
			return nil
		}
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       m.severity,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Mutation endpoint without a defined request body schema may accept unvalidated input.",
		Recommendation: "Define explicit request body schemas with validation constraints.",
		Source:         m.id,
		CWEID:          "CWE-20",
		OWASPTop10:     "A03:2021",
	}
}

var adminPathHints = []string{"/admin", "/management", "/settings/global", "/superuser"}

func evalAdminWithoutAuth(m meta, rt route.Route) *risk.Risk {
	path := strings.ToLower(rt.Path)
	hit := false
	for _, hint := range adminPathHints {
		if strings.Contains(path, hint) {
			hit = true
			break
		}
	}
	if !hit || rt.AuthRequired {
		return nil
	}
	return &risk.Risk{
		Category:       m.category,
		Severity:       risk.SeverityCritical,
		Route:          rt.Identity(),
		Title:          m.title,
		Description:    "Admin endpoints without authentication are critically exposed.",
		Recommendation: "Require elevated authentication and role-based access control for admin endpoints.",
		Source:         m.id,
		CWEID:          "CWE-306",
		OWASPTop10:     "A01:2021",
	}
}
