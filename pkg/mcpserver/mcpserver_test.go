package mcpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/mcpserver"
)

// newTestSession creates a connected client↔server session for testing.
// It returns the client session plus the server, for tests that inspect
// server state (metrics, readiness) after calls.
func newTestSession(t *testing.T, cfg *mcpserver.Config) (*mcp.ClientSession, *mcpserver.Server) {
	t.Helper()

	if cfg == nil {
		cfg = &mcpserver.Config{}
	}
	srv := mcpserver.New(cfg)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "0.0.1",
	}, nil)

	ctx := context.Background()

	// Run server in background
	go func() {
		// Best-effort: server errors are not actionable in tests;
		// the client-side assertions surface any real failures.
		_ = srv.MCPServer().Run(ctx, serverTransport)
	}()

	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs, srv
}

// writeRoutesFile drops a two-route inventory into a temp dir: one
// unauthenticated admin mutation (guaranteed findings) and one
// authenticated read.
func writeRoutesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.json")
	doc := `{"routes": [
		{"path": "/admin/users", "method": "POST", "auth_required": false},
		{"path": "/api/orders", "method": "GET", "auth_required": true}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write routes file: %v", err)
	}
	return path
}

func writeCustomRulesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `rules:
  - rule_id: CUSTOM-001
    category: security
    severity: high
    title: Internal path exposed
    description: Internal tooling paths should not appear in public route inventories.
    recommendation: Move internal tooling behind the gateway.
    match:
      path:
        contains: /internal
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

// seedRun creates a run under runsDir with findings for internal/api and
// coverage for internal/api plus internal/store, and returns the run ID.
func seedRun(t *testing.T, runsDir string) string {
	t.Helper()
	manager, err := evidence.NewManager(runsDir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	handle, err := manager.CreateRun("billing-api", "/srv/billing-api", nil)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	writer := evidence.NewWriter(handle, nil)
	findings := []any{
		evidence.FindingRecord{EvidenceID: "ev-0001", Tool: "apirisk", Severity: "high", Message: "hardcoded credential", File: "internal/api"},
		evidence.FindingRecord{EvidenceID: "ev-0002", Tool: "apirisk", Severity: "medium", Message: "verbose error body", File: "internal/api"},
	}
	if _, err := writer.WriteRecords("findings", findings); err != nil {
		t.Fatalf("WriteRecords(findings): %v", err)
	}
	coverage := []any{
		evidence.CoverageRecord{CoverageID: "cov-0001", Type: "statement", Component: "internal/api", Value: 0.2},
		evidence.CoverageRecord{CoverageID: "cov-0002", Type: "statement", Component: "internal/store", Value: 0.9},
	}
	if _, err := writer.WriteRecords("coverage", coverage); err != nil {
		t.Fatalf("WriteRecords(coverage): %v", err)
	}
	return handle.RunID
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content blocks")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want *mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, dst any) {
	t.Helper()
	text := extractText(t, result)
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		t.Fatalf("decode result JSON: %v\n%s", err, text)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Server creation tests
// ═══════════════════════════════════════════════════════════════════════════

func TestNew(t *testing.T) {
	srv := mcpserver.New(&mcpserver.Config{})
	if srv == nil {
		t.Fatal("New() returned nil")
	}
	if srv.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
	if srv.Metrics() == nil {
		t.Fatal("Metrics() returned nil")
	}
}

func TestNewWithNilConfig(t *testing.T) {
	srv := mcpserver.New(nil)
	if srv == nil {
		t.Fatal("New(nil) returned nil")
	}
}

func TestStopIdempotent(t *testing.T) {
	srv := mcpserver.New(nil)
	if err := srv.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Tool registration tests
// ═══════════════════════════════════════════════════════════════════════════

func TestListTools(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx := context.Background()

	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	expectedTools := []string{"detect_risks", "list_rules", "aggregate_risks", "read_run"}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(expectedTools))
		for _, tool := range result.Tools {
			t.Logf("  tool: %s", tool.Name)
		}
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("missing tool: %s", name)
		}
	}
}

func TestToolsHaveDescriptions(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx := context.Background()

	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	for _, tool := range result.Tools {
		if tool.Description == "" {
			t.Errorf("tool %q has empty description", tool.Name)
		}
		if tool.InputSchema == nil {
			t.Errorf("tool %q has nil input schema", tool.Name)
		}
	}
}

func TestToolsHaveAnnotations(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx := context.Background()

	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	for _, tool := range result.Tools {
		if tool.Annotations == nil {
			t.Errorf("tool %q has nil annotations", tool.Name)
			continue
		}
		if tool.Annotations.Title == "" {
			t.Errorf("tool %q has empty annotation title", tool.Name)
		}
	}
}

func TestReadOnlyToolAnnotations(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx := context.Background()

	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	readOnly := map[string]bool{"detect_risks": true, "list_rules": true, "read_run": true}
	// aggregate_risks appends risk records to the run — it must NOT be read-only.
	writes := map[string]bool{"aggregate_risks": true}

	for _, tool := range result.Tools {
		if readOnly[tool.Name] {
			if tool.Annotations == nil || !tool.Annotations.ReadOnlyHint {
				t.Errorf("%q should be ReadOnlyHint=true (writes nothing)", tool.Name)
			}
		}
		if writes[tool.Name] {
			if tool.Annotations != nil && tool.Annotations.ReadOnlyHint {
				t.Errorf("%q has ReadOnlyHint=true but persists records", tool.Name)
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// detect_risks
// ═══════════════════════════════════════════════════════════════════════════

type detectResponse struct {
	CorrelationID string         `json:"correlation_id"`
	RoutesChecked int            `json:"routes_checked"`
	TotalRisks    int            `json:"total_risks"`
	BySeverity    map[string]int `json:"by_severity"`
	ByCategory    map[string]int `json:"by_category"`
	Risks         []struct {
		Source      string `json:"source"`
		Severity    string `json:"severity"`
		Route       string `json:"route"`
		Fingerprint string `json:"fingerprint"`
	} `json:"risks"`
	SeveritySummary string `json:"severity_summary"`
}

func TestCallDetectRisks(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	routesFile := writeRoutesFile(t)
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": ` + jsonString(routesFile) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool(detect_risks): %v", err)
	}
	if result.IsError {
		t.Fatalf("detect_risks returned error: %s", extractText(t, result))
	}

	var resp detectResponse
	decodeResult(t, result, &resp)

	if resp.RoutesChecked != 2 {
		t.Errorf("routes_checked = %d, want 2", resp.RoutesChecked)
	}
	if resp.TotalRisks < 1 {
		t.Fatalf("total_risks = %d, want at least 1", resp.TotalRisks)
	}
	if resp.CorrelationID == "" {
		t.Error("correlation_id is empty")
	}
	if resp.BySeverity["critical"] < 1 {
		t.Errorf("by_severity[critical] = %d, want at least 1 (unauthenticated admin mutation)", resp.BySeverity["critical"])
	}
	if resp.SeveritySummary == "" || resp.SeveritySummary == "no risks" {
		t.Errorf("severity_summary = %q, want populated", resp.SeveritySummary)
	}

	var sawMutationRule bool
	for _, r := range resp.Risks {
		if r.Fingerprint == "" || len(r.Fingerprint) != 16 {
			t.Errorf("risk %s has fingerprint %q, want 16 hex chars", r.Source, r.Fingerprint)
		}
		if r.Source == "SEC-001" {
			sawMutationRule = true
			if r.Severity != "critical" {
				t.Errorf("SEC-001 severity = %q, want critical for admin route", r.Severity)
			}
			if r.Route != "POST /admin/users" {
				t.Errorf("SEC-001 route = %q, want POST /admin/users", r.Route)
			}
		}
	}
	if !sawMutationRule {
		t.Error("SEC-001 did not fire on unauthenticated POST /admin/users")
	}
}

func TestDetectRisksDisabledRule(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	routesFile := writeRoutesFile(t)
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": ` + jsonString(routesFile) + `, "disabled_rules": ["SEC-001"]}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("detect_risks returned error: %s", extractText(t, result))
	}

	var resp detectResponse
	decodeResult(t, result, &resp)
	for _, r := range resp.Risks {
		if r.Source == "SEC-001" {
			t.Error("SEC-001 fired despite being disabled")
		}
	}
}

func TestDetectRisksSeverityOverride(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	routesFile := writeRoutesFile(t)
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": ` + jsonString(routesFile) + `, "severity_overrides": {"SEC-001": "low"}}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("detect_risks returned error: %s", extractText(t, result))
	}

	var resp detectResponse
	decodeResult(t, result, &resp)
	var saw bool
	for _, r := range resp.Risks {
		if r.Source == "SEC-001" {
			saw = true
			// Overrides win over the rule's own admin-route escalation.
			if r.Severity != "low" {
				t.Errorf("SEC-001 severity = %q, want low (overridden)", r.Severity)
			}
		}
	}
	if !saw {
		t.Fatal("SEC-001 missing from results")
	}
}

func TestDetectRisksBadRoutesFile(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": "/nonexistent/routes.json"}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for nonexistent routes file")
	}
	if text := extractText(t, result); !strings.Contains(text, "failed to load routes") {
		t.Errorf("error text %q missing load failure explanation", text)
	}
}

func TestMalformedArgumentsDoNotPanic(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// routes_file with the wrong JSON type must produce a tool error,
	// not a protocol failure or a panic.
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": 123}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for mistyped arguments")
	}
	if text := extractText(t, result); !strings.Contains(text, "invalid arguments") {
		t.Errorf("error text %q missing invalid-arguments hint", text)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// list_rules
// ═══════════════════════════════════════════════════════════════════════════

type rulesResponse struct {
	TotalRules    int            `json:"total_rules"`
	ByCategory    map[string]int `json:"by_category"`
	FilterApplied string         `json:"filter_applied"`
	Rules         []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Severity string `json:"severity"`
		Title    string `json:"title"`
		Source   string `json:"source"`
	} `json:"rules"`
}

func TestCallListRules(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_rules",
		Arguments: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("CallTool(list_rules): %v", err)
	}
	if result.IsError {
		t.Fatalf("list_rules returned error: %s", extractText(t, result))
	}

	var resp rulesResponse
	decodeResult(t, result, &resp)

	if resp.TotalRules != 16 {
		t.Errorf("total_rules = %d, want 16 built-ins", resp.TotalRules)
	}
	for _, category := range []string{"security", "performance", "reliability"} {
		if resp.ByCategory[category] == 0 {
			t.Errorf("no rules in category %q", category)
		}
	}
	for _, r := range resp.Rules {
		if r.Source != "built-in" {
			t.Errorf("rule %s source = %q, want built-in", r.ID, r.Source)
		}
		if r.ID == "" || r.Title == "" {
			t.Errorf("rule with empty ID or title: %+v", r)
		}
	}
}

func TestListRulesCategoryFilter(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_rules",
		Arguments: json.RawMessage(`{"category": "security"}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("list_rules returned error: %s", extractText(t, result))
	}

	var resp rulesResponse
	decodeResult(t, result, &resp)

	if resp.FilterApplied != "category=security" {
		t.Errorf("filter_applied = %q, want category=security", resp.FilterApplied)
	}
	if resp.TotalRules == 0 {
		t.Fatal("security filter returned no rules")
	}
	for _, r := range resp.Rules {
		if r.Category != "security" {
			t.Errorf("rule %s category = %q, want security", r.ID, r.Category)
		}
	}
}

func TestListRulesWithCustomFile(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rulesFile := writeCustomRulesFile(t)
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_rules",
		Arguments: json.RawMessage(`{"custom_rules_file": ` + jsonString(rulesFile) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("list_rules returned error: %s", extractText(t, result))
	}

	var resp rulesResponse
	decodeResult(t, result, &resp)

	if resp.TotalRules != 17 {
		t.Errorf("total_rules = %d, want 16 built-ins + 1 custom", resp.TotalRules)
	}
	var sawCustom bool
	for _, r := range resp.Rules {
		if r.ID == "CUSTOM-001" {
			sawCustom = true
			if r.Source != "custom" {
				t.Errorf("CUSTOM-001 source = %q, want custom", r.Source)
			}
		}
	}
	if !sawCustom {
		t.Error("CUSTOM-001 missing from listing")
	}
}

func TestListRulesRejectsCollidingCustomFile(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "colliding.yaml")
	doc := `rules:
  - rule_id: SEC-001
    category: security
    severity: high
    title: Shadowing a built-in
    description: This must be rejected.
    recommendation: Rename the rule.
    match:
      path:
        contains: /x
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_rules",
		Arguments: json.RawMessage(`{"custom_rules_file": ` + jsonString(path) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for a custom rule shadowing a built-in ID")
	}
	if text := extractText(t, result); !strings.Contains(text, "failed to build rule registry") {
		t.Errorf("error text %q missing registry failure explanation", text)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// aggregate_risks and read_run
// ═══════════════════════════════════════════════════════════════════════════

type aggregateResponse struct {
	Run        string         `json:"run"`
	Components int            `json:"components"`
	ByBand     map[string]int `json:"by_band"`
	Records    []struct {
		Component  string             `json:"component"`
		Score      float64            `json:"score"`
		Band       string             `json:"band"`
		Confidence float64            `json:"confidence"`
		Factors    map[string]float64 `json:"factors"`
	} `json:"records"`
}

func TestCallAggregateRisks(t *testing.T) {
	runsDir := t.TempDir()
	run := seedRun(t, runsDir)
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: runsDir})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "aggregate_risks",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool(aggregate_risks): %v", err)
	}
	if result.IsError {
		t.Fatalf("aggregate_risks returned error: %s", extractText(t, result))
	}

	var resp aggregateResponse
	decodeResult(t, result, &resp)

	if resp.Components != 2 {
		t.Fatalf("components = %d, want 2", resp.Components)
	}
	if resp.ByBand["P3"] != 2 {
		t.Errorf("by_band[P3] = %d, want 2", resp.ByBand["P3"])
	}

	// Records come back score-descending: internal/api carries findings
	// plus a coverage gap, internal/store only a small gap.
	first := resp.Records[0]
	if first.Component != "internal/api" {
		t.Errorf("records[0].component = %q, want internal/api", first.Component)
	}
	// security 3.0*3.0 + coverage gap 0.8*2.0 = 10.6
	if first.Score < 10.5 || first.Score > 10.7 {
		t.Errorf("records[0].score = %v, want ~10.6", first.Score)
	}
	if first.Confidence < 0.66 || first.Confidence > 0.67 {
		t.Errorf("records[0].confidence = %v, want 2/3", first.Confidence)
	}
	if resp.Records[1].Component != "internal/store" {
		t.Errorf("records[1].component = %q, want internal/store", resp.Records[1].Component)
	}
}

func TestAggregateRisksUnknownRun(t *testing.T) {
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: t.TempDir()})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "aggregate_risks",
		Arguments: json.RawMessage(`{"run": "20990101-000000"}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for unknown run")
	}
	if text := extractText(t, result); !strings.Contains(text, "aggregation failed") {
		t.Errorf("error text %q missing aggregation failure explanation", text)
	}
}

type readRunResponse struct {
	RunID     string `json:"run_id"`
	CreatedAt string `json:"created_at"`
	Target    struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"target"`
	Counts  map[string]int              `json:"counts"`
	Records map[string][]map[string]any `json:"records"`
}

func TestCallReadRunManifestOnly(t *testing.T) {
	runsDir := t.TempDir()
	run := seedRun(t, runsDir)
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: runsDir})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read_run",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool(read_run): %v", err)
	}
	if result.IsError {
		t.Fatalf("read_run returned error: %s", extractText(t, result))
	}

	var resp readRunResponse
	decodeResult(t, result, &resp)

	if resp.RunID != run {
		t.Errorf("run_id = %q, want %q", resp.RunID, run)
	}
	if resp.Target.Name != "billing-api" {
		t.Errorf("target.name = %q, want billing-api", resp.Target.Name)
	}
	if resp.Counts["findings"] != 2 {
		t.Errorf("counts[findings] = %d, want 2", resp.Counts["findings"])
	}
	if resp.Counts["coverage_components"] != 2 {
		t.Errorf("counts[coverage_components] = %d, want 2", resp.Counts["coverage_components"])
	}
	if len(resp.Records) != 0 {
		t.Errorf("records present without kinds: %v", resp.Records)
	}
}

func TestReadRunWithKinds(t *testing.T) {
	runsDir := t.TempDir()
	run := seedRun(t, runsDir)
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: runsDir})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read_run",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `, "kinds": ["findings", "coverage"]}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("read_run returned error: %s", extractText(t, result))
	}

	var resp readRunResponse
	decodeResult(t, result, &resp)

	if len(resp.Records["findings"]) != 2 {
		t.Errorf("records[findings] = %d entries, want 2", len(resp.Records["findings"]))
	}
	if len(resp.Records["coverage"]) != 2 {
		t.Errorf("records[coverage] = %d entries, want 2", len(resp.Records["coverage"]))
	}
}

func TestReadRunAfterAggregate(t *testing.T) {
	runsDir := t.TempDir()
	run := seedRun(t, runsDir)
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: runsDir})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "aggregate_risks",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool(aggregate_risks): %v", err)
	}
	if result.IsError {
		t.Fatalf("aggregate_risks returned error: %s", extractText(t, result))
	}

	result, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read_run",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `, "kinds": ["risks"]}`),
	})
	if err != nil {
		t.Fatalf("CallTool(read_run): %v", err)
	}
	if result.IsError {
		t.Fatalf("read_run returned error: %s", extractText(t, result))
	}

	var resp readRunResponse
	decodeResult(t, result, &resp)
	if len(resp.Records["risks"]) != 2 {
		t.Errorf("records[risks] = %d entries, want 2 after aggregation", len(resp.Records["risks"]))
	}
	if resp.Counts["risks"] != 2 {
		t.Errorf("counts[risks] = %d, want 2", resp.Counts["risks"])
	}
}

func TestReadRunUnknownKind(t *testing.T) {
	runsDir := t.TempDir()
	run := seedRun(t, runsDir)
	cs, _ := newTestSession(t, &mcpserver.Config{RunsDir: runsDir})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read_run",
		Arguments: json.RawMessage(`{"run": ` + jsonString(run) + `, "kinds": ["telemetry"]}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for unknown record kind")
	}
	text := extractText(t, result)
	if !strings.Contains(text, "unknown record kind") || !strings.Contains(text, "findings") {
		t.Errorf("error text %q should name the bad kind and list valid ones", text)
	}
}

func TestErrorMessagesContainActionableHints(t *testing.T) {
	cs, _ := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		name        string
		tool        string
		args        string
		mustContain []string
	}{
		{"detect_no_routes_file", "detect_risks", `{}`, []string{"routes_file", "Example"}},
		{"aggregate_no_run", "aggregate_risks", `{}`, []string{"run", "Example"}},
		{"read_run_no_run", "read_run", `{}`, []string{"run", "Example"}},
		{"read_run_missing", "read_run", `{"run": "20990101-000000"}`, []string{"failed to load run"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := cs.CallTool(ctx, &mcp.CallToolParams{
				Name:      tt.tool,
				Arguments: json.RawMessage(tt.args),
			})
			if err != nil {
				t.Fatalf("CallTool: %v", err)
			}
			if !result.IsError {
				t.Fatal("did not return IsError for bad input")
			}
			text := strings.ToLower(extractText(t, result))
			for _, want := range tt.mustContain {
				if !strings.Contains(text, strings.ToLower(want)) {
					t.Errorf("error missing %q — LLM can't self-correct", want)
				}
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// HTTP endpoints
// ═══════════════════════════════════════════════════════════════════════════

func TestHTTPHandler(t *testing.T) {
	srv := mcpserver.New(nil)
	if srv.HTTPHandler() == nil {
		t.Fatal("HTTPHandler() returned nil")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := mcpserver.New(nil)
	srv.MarkReady()
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health: got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET /health: got Content-Type %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET /health: failed to decode JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("GET /health: got status %q, want %q", body["status"], "ok")
	}
	if body["service"] != "apirisk-mcp" {
		t.Errorf("GET /health: got service %q, want %q", body["service"], "apirisk-mcp")
	}
}

func TestHealthEndpointNotReady(t *testing.T) {
	srv := mcpserver.New(nil)
	// Do NOT call srv.MarkReady() — server should return 503.
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /health (not ready): got status %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET /health: failed to decode JSON: %v", err)
	}
	if body["status"] != "starting" {
		t.Errorf("GET /health (not ready): got status %q, want %q", body["status"], "starting")
	}
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	srv := mcpserver.New(nil)
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/health", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /health: got status %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestHealthEndpointHEAD(t *testing.T) {
	srv := mcpserver.New(nil)
	srv.MarkReady()
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	resp, err := http.Head(ts.URL + "/health")
	if err != nil {
		t.Fatalf("HEAD /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD /health: got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := mcpserver.New(nil)
	srv.MarkReady()
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := mcpserver.New(nil)
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "https://studio.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /health with Origin: %v", err)
	}
	defer resp.Body.Close()

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "https://studio.example.com"},
		{"Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS"},
		{"Access-Control-Allow-Credentials", "true"},
		{"Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version"},
	}
	for _, tt := range tests {
		if got := resp.Header.Get(tt.header); got != tt.want {
			t.Errorf("CORS header %q = %q, want %q", tt.header, got, tt.want)
		}
	}

	allowHeaders := resp.Header.Get("Access-Control-Allow-Headers")
	for _, required := range []string{"Content-Type", "Authorization", "Mcp-Session-Id", "Last-Event-ID"} {
		if !strings.Contains(allowHeaders, required) {
			t.Errorf("Access-Control-Allow-Headers missing %q: %s", required, allowHeaders)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := mcpserver.New(nil)
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/mcp", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "https://studio.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Mcp-Session-Id")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /mcp: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS /mcp: got status %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://studio.example.com" {
		t.Errorf("preflight Allow-Origin = %q, want the request origin", got)
	}
	if maxAge := resp.Header.Get("Access-Control-Max-Age"); maxAge != "86400" {
		t.Errorf("preflight Max-Age = %q, want %q", maxAge, "86400")
	}
}

func TestCORSAbsentWithoutOrigin(t *testing.T) {
	srv := mcpserver.New(nil)
	srv.MarkReady()
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for a non-browser request, want unset", got)
	}
	if !strings.Contains(resp.Header.Get("Vary"), "Origin") {
		t.Error("Vary header missing Origin")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Metrics
// ═══════════════════════════════════════════════════════════════════════════

func TestMetricsRecordToolCalls(t *testing.T) {
	cs, srv := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_rules",
		Arguments: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("list_rules returned error: %s", extractText(t, result))
	}

	families, err := srv.Metrics().Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "apirisk_tool_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["tool"] == "list_rules" && labels["status"] == "ok" && m.GetCounter().GetValue() >= 1 {
				found = true
			}
		}
	}
	if !found {
		t.Error("apirisk_tool_calls_total{tool=list_rules,status=ok} not incremented")
	}
}

func TestMetricsCountDetectedRisks(t *testing.T) {
	cs, srv := newTestSession(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	routesFile := writeRoutesFile(t)
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_risks",
		Arguments: json.RawMessage(`{"routes_file": ` + jsonString(routesFile) + `}`),
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("detect_risks returned error: %s", extractText(t, result))
	}

	families, err := srv.Metrics().Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != "apirisk_risks_detected_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total < 1 {
		t.Errorf("apirisk_risks_detected_total = %v, want at least 1", total)
	}
}

// jsonString quotes a string as a JSON value for argument templating.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
