package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/apirisk/apirisk/pkg/assess"
	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
	"github.com/apirisk/apirisk/pkg/rules"
	"github.com/apirisk/apirisk/pkg/scoring"
)

// registerTools adds all risk engine tools to the MCP server.
func (s *Server) registerTools() {
	s.addDetectRisksTool()
	s.addListRulesTool()
	s.addAggregateRisksTool()
	s.addReadRunTool()
}

// newCorrelationID returns a compact per-invocation ID for log lines and
// tool responses, so a client can tie the two together.
func newCorrelationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ═══════════════════════════════════════════════════════════════════════════
// detect_risks — Evaluate the rule registry against a route inventory
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addDetectRisksTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "detect_risks",
			Title: "Detect API Risks",
			Description: `Evaluate the full rule registry against a discovered API route inventory and return prioritized risks.

USE THIS TOOL WHEN:
• The user has a route inventory file (JSON or YAML) and asks "what risks does this API have?"
• You need per-route security/performance/reliability findings before aggregating
• Re-checking an inventory after route changes, with or without custom rules

DO NOT USE THIS TOOL WHEN:
• You only want to browse the rule catalog — use 'list_rules' instead
• You want component-level scores from stored evidence — use 'aggregate_risks' instead
• The input is not a route inventory (this tool does not parse source code)

This is a READ-ONLY local operation. No network traffic, nothing persisted. Instant results.

EXAMPLE INPUTS:
• Basic: {"routes_file": "./routes.json"}
• Skip noisy rules: {"routes_file": "./routes.json", "disabled_rules": ["PERF-002"]}
• With custom rules: {"routes_file": "./routes.json", "custom_rules_file": "./team-rules.yaml"}
• Downgrade a rule: {"routes_file": "./routes.json", "severity_overrides": {"SEC-004": "low"}}

Returns: correlation ID, route/rule counts, severity and category breakdowns, and the full prioritized risk list (critical first, admin routes ranked up within a severity).`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"routes_file": map[string]any{
						"type":        "string",
						"description": "Path to the route inventory file (.json, .yaml, or .yml).",
					},
					"disabled_rules": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Rule IDs to skip during evaluation, e.g. [\"SEC-003\", \"PERF-001\"].",
					},
					"custom_rules_file": map[string]any{
						"type":        "string",
						"description": "Optional YAML file with additional rule definitions. IDs must not collide with built-ins.",
					},
					"severity_overrides": map[string]any{
						"type":        "object",
						"description": "Map of rule ID to replacement severity (critical, high, medium, low). Applied after evaluation and escalation.",
						"additionalProperties": map[string]any{
							"type": "string",
							"enum": []string{"critical", "high", "medium", "low"},
						},
					},
				},
				"required": []string{"routes_file"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Detect API Risks",
			},
		},
		s.handleDetectRisks,
	)
}

type detectRisksArgs struct {
	RoutesFile        string            `json:"routes_file"`
	DisabledRules     []string          `json:"disabled_rules"`
	CustomRulesFile   string            `json:"custom_rules_file"`
	SeverityOverrides map[string]string `json:"severity_overrides"`
}

// detectedRisk flattens a risk with its stable fingerprint so clients can
// dedup recurring findings across invocations.
type detectedRisk struct {
	risk.Risk
	Fingerprint string `json:"fingerprint"`
}

type detectSummary struct {
	CorrelationID  string         `json:"correlation_id"`
	RoutesFile     string         `json:"routes_file"`
	RoutesChecked  int            `json:"routes_checked"`
	RulesDisabled  int            `json:"rules_disabled,omitempty"`
	TotalRisks     int            `json:"total_risks"`
	BySeverity     map[string]int `json:"by_severity"`
	ByCategory     map[string]int `json:"by_category"`
	Risks          []detectedRisk `json:"risks"`
	SeverityCounts string         `json:"severity_summary"`
}

func (s *Server) handleDetectRisks(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.waitForSlot(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	status := "error"
	defer func() { s.metrics.ObserveToolCall("detect_risks", status, time.Since(start)) }()

	var args detectRisksArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'routes_file' (string) plus optional 'disabled_rules', 'custom_rules_file', 'severity_overrides'.", err)), nil
	}
	if args.RoutesFile == "" {
		return errorResult("routes_file is required. Example: {\"routes_file\": \"./routes.json\"}"), nil
	}

	corrID := newCorrelationID()
	logToSession(ctx, req, logInfo, fmt.Sprintf("[%s] evaluating rules against %s", corrID, args.RoutesFile))

	routes, err := route.LoadFile(args.RoutesFile)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load routes from %s: %v. The file must be a JSON or YAML route inventory (array of objects with at least a 'path').", args.RoutesFile, err)), nil
	}

	rulesFile := args.CustomRulesFile
	if rulesFile == "" {
		rulesFile = s.config.RulesFile
	}
	risks, err := assess.Run(routes, assess.Options{
		DisabledRules:     args.DisabledRules,
		CustomRulesFile:   rulesFile,
		SeverityOverrides: args.SeverityOverrides,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("assessment failed: %v. Check custom rule IDs for collisions and severity values against critical/high/medium/low.", err)), nil
	}

	bySeverity := make(map[string]int)
	byCategory := make(map[string]int)
	detected := make([]detectedRisk, 0, len(risks))
	for _, r := range risks {
		bySeverity[string(r.Severity)]++
		byCategory[string(r.Category)]++
		detected = append(detected, detectedRisk{Risk: r, Fingerprint: r.Fingerprint()})
	}
	for severity, n := range bySeverity {
		s.metrics.AddRisks(severity, n)
	}

	summary := detectSummary{
		CorrelationID:  corrID,
		RoutesFile:     args.RoutesFile,
		RoutesChecked:  len(routes),
		RulesDisabled:  len(args.DisabledRules),
		TotalRisks:     len(detected),
		BySeverity:     bySeverity,
		ByCategory:     byCategory,
		Risks:          detected,
		SeverityCounts: summarizeSeverities(bySeverity),
	}

	logToSession(ctx, req, logInfo, fmt.Sprintf("[%s] %d routes checked, %s", corrID, len(routes), summary.SeverityCounts))
	if bySeverity["critical"] > 0 {
		logToSession(ctx, req, logWarning,
			fmt.Sprintf("[%s] %d critical risks need immediate attention", corrID, bySeverity["critical"]))
	}
	status = "ok"
	return jsonResult(summary)
}

// summarizeSeverities renders counts as "2 critical, 1 high" in descending
// severity order, for log lines and response summaries.
func summarizeSeverities(counts map[string]int) string {
	if len(counts) == 0 {
		return "no risks"
	}
	parts := make([]string, 0, len(counts))
	for _, severity := range []string{"critical", "high", "medium", "low"} {
		if n := counts[severity]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, severity))
		}
	}
	if len(parts) == 0 {
		return "no risks"
	}
	return strings.Join(parts, ", ")
}

// ═══════════════════════════════════════════════════════════════════════════
// list_rules — Browse the rule registry
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListRulesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "list_rules",
			Title: "List Detection Rules",
			Description: `Inventory tool — browse the active rule registry WITHOUT evaluating anything.

USE THIS TOOL WHEN:
• The user asks "what rules do you check?" or "which rule is SEC-003?"
• Picking rule IDs for 'detect_risks' disabled_rules or severity_overrides
• Verifying a custom rules file loads and merges cleanly before a detection pass

DO NOT USE THIS TOOL WHEN:
• You want findings for a concrete inventory — use 'detect_risks' instead

This is a READ-ONLY local operation. Instant results.

EXAMPLE INPUTS:
• Everything: {} (no arguments)
• Security rules only: {"category": "security"}
• Critical rules: {"severity": "critical"}
• Preview a custom file merged in: {"custom_rules_file": "./team-rules.yaml"}

CATEGORIES: security, performance, reliability
SEVERITY (descending): critical > high > medium > low

Returns: total count, per-category breakdown, and each rule's ID, category, base severity, title, description, and source (built-in or custom).`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category": map[string]any{
						"type":        "string",
						"description": "Filter by rule category. Leave empty for all categories.",
						"enum":        []string{"security", "performance", "reliability"},
					},
					"severity": map[string]any{
						"type":        "string",
						"description": "Filter by exact base severity.",
						"enum":        []string{"critical", "high", "medium", "low"},
					},
					"custom_rules_file": map[string]any{
						"type":        "string",
						"description": "Optional YAML rule file to merge with the built-ins before listing.",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "List Detection Rules",
			},
		},
		s.handleListRules,
	)
}

type listRulesArgs struct {
	Category        string `json:"category"`
	Severity        string `json:"severity"`
	CustomRulesFile string `json:"custom_rules_file"`
}

type ruleInfo struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

type rulesSummary struct {
	TotalRules    int            `json:"total_rules"`
	ByCategory    map[string]int `json:"by_category"`
	FilterApplied string         `json:"filter_applied,omitempty"`
	Rules         []ruleInfo     `json:"rules"`
}

func (s *Server) handleListRules(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.waitForSlot(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	status := "error"
	defer func() { s.metrics.ObserveToolCall("list_rules", status, time.Since(start)) }()

	var args listRulesArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected optional 'category', 'severity', and 'custom_rules_file' strings.", err)), nil
	}

	rulesFile := args.CustomRulesFile
	if rulesFile == "" {
		rulesFile = s.config.RulesFile
	}
	reg, err := assess.BuildRegistry(assess.Options{CustomRulesFile: rulesFile})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to build rule registry: %v. Custom rule IDs must be unique and must not shadow built-in IDs.", err)), nil
	}

	builtins := rules.DefaultRegistry().IDSet()
	byCategory := make(map[string]int)
	var listed []ruleInfo
	for _, r := range reg.Rules() {
		if args.Category != "" && !strings.EqualFold(string(r.Category()), args.Category) {
			continue
		}
		if args.Severity != "" && !strings.EqualFold(string(r.Severity()), args.Severity) {
			continue
		}
		source := "custom"
		if _, ok := builtins[r.ID()]; ok {
			source = "built-in"
		}
		byCategory[string(r.Category())]++
		listed = append(listed, ruleInfo{
			ID:          r.ID(),
			Category:    string(r.Category()),
			Severity:    string(r.Severity()),
			Title:       r.Title(),
			Description: r.Description(),
			Source:      source,
		})
	}

	summary := rulesSummary{
		TotalRules: len(listed),
		ByCategory: byCategory,
		Rules:      listed,
	}
	if args.Category != "" || args.Severity != "" {
		parts := make([]string, 0, 2)
		if args.Category != "" {
			parts = append(parts, "category="+args.Category)
		}
		if args.Severity != "" {
			parts = append(parts, "severity="+args.Severity)
		}
		summary.FilterApplied = strings.Join(parts, ", ")
	}

	status = "ok"
	return jsonResult(summary)
}

// ═══════════════════════════════════════════════════════════════════════════
// aggregate_risks — Score a run's evidence into component risks
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addAggregateRisksTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "aggregate_risks",
			Title: "Aggregate Component Risks",
			Description: `Fold a run's collected evidence (findings, coverage, churn) into weighted per-component risk scores with P0-P3 bands, and persist the records into the run.

USE THIS TOOL WHEN:
• A run directory already holds evidence and the user asks "which components are riskiest?"
• Evidence was re-collected and scores need recomputing
• You need banded scores to prioritize remediation across components

DO NOT USE THIS TOOL WHEN:
• You have a raw route inventory, not a run — use 'detect_risks' instead
• You only want to inspect what a run contains — use 'read_run' instead

This tool WRITES: risk and recommendation records are appended to the run's evidence files. Running it twice appends a second batch; prefer 'read_run' to re-inspect existing scores.

EXAMPLE INPUTS:
• Default weights: {"run": "20260825-143000"}
• Custom weights: {"run": "20260825-143000", "config_file": "./scoring.yaml"}

SCORE: 0-100, security/coverage/churn factors weighted per config.
BANDS: P0 ≥ 80 > P1 ≥ 65 > P2 ≥ 50 > P3.
CONFIDENCE: 0.33 (one evidence source) to 1.0 (all three).

Returns: component count, per-band breakdown, and the full risk records sorted by descending score.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"run": map[string]any{
						"type":        "string",
						"description": "Run ID (resolved under the runs directory) or an absolute path to a run directory.",
					},
					"config_file": map[string]any{
						"type":        "string",
						"description": "Optional scoring config YAML with factor weights, band cutoffs, and minimum score floor.",
					},
				},
				"required": []string{"run"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   false,
				IdempotentHint: false,
				OpenWorldHint:  boolPtr(false),
				Title:          "Aggregate Component Risks",
			},
		},
		s.handleAggregateRisks,
	)
}

type aggregateRisksArgs struct {
	Run        string `json:"run"`
	ConfigFile string `json:"config_file"`
}

type aggregateSummary struct {
	Run        string                `json:"run"`
	ConfigFile string                `json:"config_file,omitempty"`
	Components int                   `json:"components"`
	ByBand     map[string]int        `json:"by_band"`
	Records    []evidence.RiskRecord `json:"records"`
}

func (s *Server) handleAggregateRisks(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.waitForSlot(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	status := "error"
	defer func() { s.metrics.ObserveToolCall("aggregate_risks", status, time.Since(start)) }()

	var args aggregateRisksArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'run' (string) and optional 'config_file' (string).", err)), nil
	}
	if args.Run == "" {
		return errorResult("run is required. Example: {\"run\": \"20260825-143000\"}. Use 'read_run' first if you are unsure which runs exist."), nil
	}

	configFile := args.ConfigFile
	if configFile == "" {
		configFile = s.config.ScoringConfig
	}

	logToSession(ctx, req, logInfo, "aggregating evidence for run "+args.Run)

	records, err := scoring.AggregateRunIn(s.config.RunsDir, args.Run, configFile, s.logger)
	if err != nil {
		return errorResult(fmt.Sprintf("aggregation failed: %v. Verify the run ID exists under the runs directory and any config_file parses as scoring YAML.", err)), nil
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	byBand := make(map[string]int)
	for _, r := range records {
		byBand[r.Band]++
	}

	logToSession(ctx, req, logInfo, fmt.Sprintf("run %s scored: %d components", args.Run, len(records)))
	status = "ok"
	return jsonResult(aggregateSummary{
		Run:        args.Run,
		ConfigFile: args.ConfigFile,
		Components: len(records),
		ByBand:     byBand,
		Records:    records,
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// read_run — Inspect a run's manifest and evidence records
// ═══════════════════════════════════════════════════════════════════════════

// readableKinds are the evidence record kinds read_run can return, matching
// the per-kind JSONL file names inside a run's evidence directory.
var readableKinds = []string{"findings", "coverage", "churn", "risks", "recommendations", "api", "tests"}

func (s *Server) addReadRunTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "read_run",
			Title: "Read Run Evidence",
			Description: `Inspect a run: its manifest (target, timestamps, counts, diagnostics) and optionally the stored evidence records themselves.

USE THIS TOOL WHEN:
• The user asks "what's in run X?" or "show me the risks from the last run"
• Checking whether evidence exists before calling 'aggregate_risks'
• Pulling stored risk or recommendation records without recomputing anything

DO NOT USE THIS TOOL WHEN:
• You need fresh scores from updated evidence — use 'aggregate_risks' instead
• You have a route inventory file, not a run — use 'detect_risks' instead

This is a READ-ONLY local operation. Instant results.

EXAMPLE INPUTS:
• Manifest only: {"run": "20260825-143000"}
• Risks and recommendations: {"run": "20260825-143000", "kinds": ["risks", "recommendations"]}
• Everything collected: {"run": "20260825-143000", "kinds": ["findings", "coverage", "churn", "risks", "recommendations", "api", "tests"]}

KINDS: findings, coverage, churn, risks, recommendations, api, tests

Returns: manifest fields plus a records object keyed by requested kind. Kinds with no evidence file return empty arrays.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"run": map[string]any{
						"type":        "string",
						"description": "Run ID (resolved under the runs directory) or an absolute path to a run directory.",
					},
					"kinds": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": readableKinds},
						"description": "Evidence record kinds to include. Empty returns the manifest only.",
					},
				},
				"required": []string{"run"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Read Run Evidence",
			},
		},
		s.handleReadRun,
	)
}

type readRunArgs struct {
	Run   string   `json:"run"`
	Kinds []string `json:"kinds"`
}

type runContents struct {
	RunID         string                  `json:"run_id"`
	CreatedAt     string                  `json:"created_at"`
	Target        evidence.TargetMetadata `json:"target"`
	Counts        map[string]int          `json:"counts"`
	EvidenceFiles map[string]string       `json:"evidence_files"`
	Diagnostics   []string                `json:"diagnostics,omitempty"`
	Records       map[string]any          `json:"records,omitempty"`
}

func (s *Server) handleReadRun(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.waitForSlot(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	status := "error"
	defer func() { s.metrics.ObserveToolCall("read_run", status, time.Since(start)) }()

	var args readRunArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'run' (string) and optional 'kinds' (array of strings).", err)), nil
	}
	if args.Run == "" {
		return errorResult("run is required. Example: {\"run\": \"20260825-143000\"}"), nil
	}

	manager, err := evidence.NewManager(s.config.RunsDir, s.logger)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to open runs directory: %v", err)), nil
	}
	handle, err := manager.LoadRun(args.Run)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load run %s: %v. Run IDs look like 20260825-143000; pass an absolute path for runs stored elsewhere.", args.Run, err)), nil
	}

	contents := runContents{
		RunID:         handle.Manifest.RunID,
		CreatedAt:     handle.Manifest.CreatedAt,
		Target:        handle.Manifest.Target,
		Counts:        handle.Manifest.Counts,
		EvidenceFiles: handle.Manifest.EvidenceFiles,
		Diagnostics:   handle.Manifest.Diagnostics,
	}

	if len(args.Kinds) > 0 {
		reader := evidence.NewReader(handle, s.logger)
		contents.Records = make(map[string]any, len(args.Kinds))
		for _, kind := range args.Kinds {
			records, err := readKind(reader, kind)
			if err != nil {
				return errorResult(fmt.Sprintf("failed to read %s records: %v. Valid kinds: %s.", kind, err, strings.Join(readableKinds, ", "))), nil
			}
			contents.Records[kind] = records
		}
	}

	status = "ok"
	return jsonResult(contents)
}

// readKind dispatches a kind name to the matching typed reader.
func readKind(reader *evidence.Reader, kind string) (any, error) {
	switch kind {
	case "findings":
		return reader.ReadFindings()
	case "coverage":
		return reader.ReadCoverage()
	case "churn":
		return reader.ReadChurn()
	case "risks":
		return reader.ReadRisks()
	case "recommendations":
		return reader.ReadRecommendations()
	case "api":
		return reader.ReadAPIRoutes()
	case "tests":
		return reader.ReadTests()
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}
