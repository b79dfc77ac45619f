package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

func mkRoute(method, path string, auth bool) route.Route {
	return route.Route{Method: method, Path: path, AuthRequired: auth}
}

func findRule(t *testing.T, id string) Rule {
	t.Helper()
	r, ok := DefaultRegistry().Get(id)
	require.True(t, ok, "built-in rule %s not registered", id)
	return r
}

func TestBuiltinCatalogue(t *testing.T) {
	reg := DefaultRegistry()
	ids := reg.IDs()
	require.Len(t, ids, 16)

	want := []string{
		"SEC-001", "SEC-002", "SEC-003", "SEC-004",
		"SEC-005", "SEC-006", "SEC-007", "SEC-008",
		"PERF-001", "PERF-002", "PERF-003", "PERF-004",
		"REL-001", "REL-002", "REL-003", "REL-004",
	}
	assert.Equal(t, want, ids)

	for _, r := range reg.Rules() {
		assert.True(t, r.Category().IsValid(), "rule %s category", r.ID())
		assert.True(t, r.Severity().IsValid(), "rule %s severity", r.ID())
		assert.NotEmpty(t, r.Title(), "rule %s title", r.ID())
	}
}

func TestUnauthenticatedMutation(t *testing.T) {
	rule := findRule(t, "SEC-001")

	tests := []struct {
		name     string
		route    route.Route
		severity risk.Severity
		fires    bool
	}{
		{"post without auth", mkRoute("POST", "/orders", false), risk.SeverityHigh, true},
		{"delete without auth", mkRoute("DELETE", "/orders/{id}", false), risk.SeverityHigh, true},
		{"post with auth", mkRoute("POST", "/orders", true), "", false},
		{"get without auth", mkRoute("GET", "/orders", false), "", false},
		{"admin path escalates", mkRoute("POST", "/admin/users", false), risk.SeverityCritical, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.Evaluate(tt.route)
			if !tt.fires {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, "SEC-001", got.Source)
			assert.Equal(t, tt.route.Identity(), got.Route)
			assert.Equal(t, "CWE-306", got.CWEID)
		})
	}
}

func TestMissingCORS(t *testing.T) {
	rule := findRule(t, "SEC-002")

	assert.NotNil(t, rule.Evaluate(mkRoute("GET", "/api/items", false)))
	assert.Nil(t, rule.Evaluate(mkRoute("OPTIONS", "/api/items", false)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/internal/items", false)))

	configured := mkRoute("GET", "/api/items", false)
	configured.Metadata = map[string]any{"cors_origins": "*"}
	assert.Nil(t, rule.Evaluate(configured))

	headers := mkRoute("GET", "/api/items", false)
	headers.Metadata = map[string]any{"headers": []string{"Access-Control-Allow-Origin"}}
	assert.Nil(t, rule.Evaluate(headers))
}

func TestPathTraversal(t *testing.T) {
	rule := findRule(t, "SEC-003")

	rt := mkRoute("GET", "/download", false)
	rt.Params = map[string][]route.Param{
		"query": {{Name: "Filename", In: "query"}},
	}
	got := rule.Evaluate(rt)
	require.NotNil(t, got)
	assert.Contains(t, got.Description, "'Filename'")
	assert.Equal(t, "CWE-22", got.CWEID)

	safe := mkRoute("GET", "/download", false)
	safe.Params = map[string][]route.Param{
		"query": {{Name: "id", In: "query"}},
	}
	assert.Nil(t, rule.Evaluate(safe))
}

func TestMassAssignment(t *testing.T) {
	rule := findRule(t, "SEC-004")

	bare := mkRoute("PATCH", "/users/{id}", true)
	assert.NotNil(t, rule.Evaluate(bare))

	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/users", true)))

	explicit := mkRoute("PUT", "/users/{id}", true)
	explicit.Params = map[string][]route.Param{
		"body": {{
			Name: "body",
			Content: map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{
						"properties": map[string]any{"name": map[string]any{"type": "string"}},
					},
				},
			},
		}},
	}
	assert.Nil(t, rule.Evaluate(explicit))

	openSchema := mkRoute("PUT", "/users/{id}", true)
	openSchema.Params = map[string][]route.Param{
		"body": {{
			Name: "body",
			Content: map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"type": "object"},
				},
			},
		}},
	}
	assert.NotNil(t, rule.Evaluate(openSchema))
}

func TestMissingRateLimit(t *testing.T) {
	rule := findRule(t, "SEC-005")

	assert.NotNil(t, rule.Evaluate(mkRoute("POST", "/auth/login", false)))
	assert.NotNil(t, rule.Evaluate(mkRoute("POST", "/password/reset", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/auth/login", false)))
	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/orders", false)))
}

func TestSensitiveQueryParams(t *testing.T) {
	rule := findRule(t, "SEC-006")

	rt := mkRoute("GET", "/callback", false)
	rt.Params = map[string][]route.Param{
		"query": {{Name: "access_token", In: "query"}},
	}
	got := rule.Evaluate(rt)
	require.NotNil(t, got)
	assert.Contains(t, got.Description, "'access_token'")
	assert.Equal(t, "CWE-598", got.CWEID)

	// Body params with the same names are fine.
	body := mkRoute("POST", "/login", false)
	body.Params = map[string][]route.Param{
		"body": {{Name: "password", In: "body"}},
	}
	assert.Nil(t, rule.Evaluate(body))
}

func TestMissingInputValidation(t *testing.T) {
	rule := findRule(t, "SEC-007")

	assert.NotNil(t, rule.Evaluate(mkRoute("POST", "/orders", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/session/logout", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("DELETE", "/orders/{id}", true)))

	withBody := mkRoute("POST", "/orders", true)
	withBody.Params = map[string][]route.Param{
		"body": {{Name: "body"}},
	}
	assert.Nil(t, rule.Evaluate(withBody))
}

func TestAdminWithoutElevatedAuth(t *testing.T) {
	rule := findRule(t, "SEC-008")

	got := rule.Evaluate(mkRoute("GET", "/admin/dashboard", false))
	require.NotNil(t, got)
	assert.Equal(t, risk.SeverityCritical, got.Severity)

	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/admin/dashboard", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/profile", false)))
}

func TestMissingPagination(t *testing.T) {
	rule := findRule(t, "PERF-001")

	got := rule.Evaluate(mkRoute("GET", "/orders", true))
	require.NotNil(t, got)
	assert.Equal(t, risk.SeverityMedium, got.Severity)

	search := rule.Evaluate(mkRoute("GET", "/orders/search", true))
	require.NotNil(t, search)
	assert.Equal(t, risk.SeverityHigh, search.Severity)

	paged := mkRoute("GET", "/orders", true)
	paged.Params = map[string][]route.Param{
		"query": {{Name: "limit", In: "query"}},
	}
	assert.Nil(t, rule.Evaluate(paged))

	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/orders", true)))
}

func TestUnboundedQuery(t *testing.T) {
	rule := findRule(t, "PERF-002")

	unbounded := mkRoute("GET", "/orders", true)
	unbounded.Params = map[string][]route.Param{
		"query": {{Name: "limit", In: "query", Schema: map[string]any{"type": "integer"}}},
	}
	got := rule.Evaluate(unbounded)
	require.NotNil(t, got)
	assert.Contains(t, got.Description, "'limit'")
	assert.Contains(t, got.Recommendation, "'limit'")

	bounded := mkRoute("GET", "/orders", true)
	bounded.Params = map[string][]route.Param{
		"query": {{Name: "limit", In: "query", Schema: map[string]any{"type": "integer", "maximum": 100}}},
	}
	assert.Nil(t, rule.Evaluate(bounded))

	// No schema block at all: nothing to assert against, no risk.
	noSchema := mkRoute("GET", "/orders", true)
	noSchema.Params = map[string][]route.Param{
		"query": {{Name: "limit", In: "query"}},
	}
	assert.Nil(t, rule.Evaluate(noSchema))
}

func TestNestedResourceQueries(t *testing.T) {
	rule := findRule(t, "PERF-003")

	assert.NotNil(t, rule.Evaluate(mkRoute("GET", "/users/{id}/posts", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/users/{id}", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/users", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/users/{id}/posts", true)))
	// Param in last position has no trailing collection.
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/orgs/teams/{id}", true)))
}

func TestMissingCaching(t *testing.T) {
	rule := findRule(t, "PERF-004")

	got := rule.Evaluate(mkRoute("GET", "/users/{id}", true))
	require.NotNil(t, got)
	assert.Equal(t, risk.SeverityLow, got.Severity)

	cached := mkRoute("GET", "/users/{id}", true)
	cached.Responses = map[string]route.Response{
		"200": {Headers: map[string]any{"ETag": map[string]any{}}},
	}
	assert.Nil(t, rule.Evaluate(cached))

	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/users/{id}/search", true)))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/users", true)))
}

func TestDeprecatedRoute(t *testing.T) {
	rule := findRule(t, "REL-001")

	deprecated := mkRoute("GET", "/v1/orders", true)
	deprecated.Metadata = map[string]any{"deprecated": true}
	assert.NotNil(t, rule.Evaluate(deprecated))

	current := mkRoute("GET", "/v2/orders", true)
	current.Metadata = map[string]any{"deprecated": false}
	assert.Nil(t, rule.Evaluate(current))
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/v2/orders", true)))
}

func TestMissingErrorSchema(t *testing.T) {
	rule := findRule(t, "REL-002")

	onlyOK := mkRoute("POST", "/orders", true)
	onlyOK.Responses = map[string]route.Response{"201": {}}
	assert.NotNil(t, rule.Evaluate(onlyOK))

	withErrors := mkRoute("POST", "/orders", true)
	withErrors.Responses = map[string]route.Response{"201": {}, "400": {}}
	assert.Nil(t, rule.Evaluate(withErrors))

	get := mkRoute("GET", "/orders", true)
	get.Responses = map[string]route.Response{"200": {}}
	assert.Nil(t, rule.Evaluate(get))

	// Nothing documented at all is not flagged.
	assert.Nil(t, rule.Evaluate(mkRoute("POST", "/orders", true)))
}

func TestInconsistentNaming(t *testing.T) {
	rule := findRule(t, "REL-003")

	mixed := []route.Route{
		mkRoute("GET", "/user_accounts", true),
		mkRoute("GET", "/userProfiles", true),
		mkRoute("GET", "/orders", true),
	}
	risks := rule.EvaluateAll(mixed)
	require.Len(t, risks, 1)
	assert.Equal(t, "REL-003", risks[0].Source)
	assert.Empty(t, risks[0].Route)
	// Styles are reported in first-seen order with occurrence counts.
	assert.Contains(t, risks[0].Description, "snake_case(1), camelCase(1)")

	uniform := []route.Route{
		mkRoute("GET", "/orders", true),
		mkRoute("GET", "/users/{id}", true),
	}
	assert.Empty(t, rule.EvaluateAll(uniform))

	single := []route.Route{
		mkRoute("GET", "/user_accounts", true),
		mkRoute("GET", "/orders", true),
	}
	assert.Empty(t, rule.EvaluateAll(single))

	assert.Empty(t, rule.EvaluateAll(nil))
}

func TestMissingHealthCheck(t *testing.T) {
	rule := findRule(t, "REL-004")

	noHealth := []route.Route{
		mkRoute("GET", "/orders", true),
		mkRoute("POST", "/orders", true),
	}
	risks := rule.EvaluateAll(noHealth)
	require.Len(t, risks, 1)
	assert.Equal(t, risk.SeverityMedium, risks[0].Severity)
	assert.Empty(t, risks[0].Route)

	withHealth := append(noHealth, mkRoute("GET", "/healthz/", false))
	assert.Empty(t, rule.EvaluateAll(withHealth))

	assert.Empty(t, rule.EvaluateAll(nil))

	// Aggregate rules never fire per route.
	assert.Nil(t, rule.Evaluate(mkRoute("GET", "/orders", true)))
}

func TestRegistryEvaluateAll(t *testing.T) {
	routes := []route.Route{
		mkRoute("POST", "/orders", false),
		mkRoute("GET", "/healthz", false),
	}

	reg := DefaultRegistry()
	all := reg.EvaluateAll(routes)
	require.NotEmpty(t, all)

	var sources []string
	for _, r := range all {
		sources = append(sources, r.Source)
	}
	assert.Contains(t, sources, "SEC-001")

	filtered := reg.EvaluateAll(routes, "SEC-001")
	for _, r := range filtered {
		assert.NotEqual(t, "SEC-001", r.Source)
	}
	assert.Len(t, filtered, len(all)-1)
}

func TestRegistryRegisterCollision(t *testing.T) {
	reg := DefaultRegistry()
	err := reg.Register(&routeRule{meta: meta{id: "SEC-001"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuleCollision)
	assert.True(t, strings.Contains(err.Error(), "SEC-001"))
}
