package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/jsonutil"
	"github.com/apirisk/apirisk/pkg/ui"
)

// Typed logging level constants — the MCP SDK defines LoggingLevel as a raw
// string type without exported constants. We define them here for type safety.
const (
	logInfo    mcp.LoggingLevel = "info"
	logWarning mcp.LoggingLevel = "warning"
)

// Config holds MCP server configuration.
type Config struct {
	// RunsDir overrides the run store location. Empty uses the
	// APIRISK_RUNS_DIR environment variable or ~/.apirisk/runs.
	RunsDir string

	// RulesFile is an optional custom rules YAML loaded into every
	// detect_risks and list_rules call.
	RulesFile string

	// ScoringConfig is an optional scoring config YAML used by
	// aggregate_risks when the tool call does not name one.
	ScoringConfig string

	// MetricsAddr enables the Prometheus endpoint when non-empty,
	// e.g. ":9090".
	MetricsAddr string

	// RateLimit is the sustained tool-call rate per second
	// (default defaults.MCPRatePerSecond).
	RateLimit float64

	// RateBurst is the token bucket size (default defaults.MCPRateBurst).
	RateBurst int

	// Logger receives server diagnostics; nil uses slog.Default().
	Logger *slog.Logger
}

// Server wraps the MCP server with apirisk functionality.
type Server struct {
	mcp     *mcp.Server
	config  *Config
	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *Metrics
	ready   atomic.Bool
}

// New creates an MCP server with all tools registered. Metrics are
// collected always and served only when cfg.MetricsAddr is set.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.MCPRatePerSecond
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaults.MCPRateBurst
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics: NewMetrics(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "apirisk",
			Title:   "API Risk Detection MCP Server",
			Version: ui.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Metrics returns the server's metric set (e.g., testing).
func (s *Server) Metrics() *Metrics { return s.metrics }

// MarkReady signals that startup validation passed. Until then the
// /health endpoint answers 503 Service Unavailable.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady returns true once startup validation completed.
func (s *Server) IsReady() bool { return s.ready.Load() }

// Stop shuts down the metrics endpoint if one is running.
func (s *Server) Stop() error {
	return s.metrics.Close()
}

// RunStdio runs the MCP server over stdio transport, the primary mode
// for IDE integrations. Serves metrics in the background when configured.
func (s *Server) RunStdio(ctx context.Context) error {
	if s.config.MetricsAddr != "" {
		if err := s.metrics.Serve(s.config.MetricsAddr); err != nil {
			return fmt.Errorf("mcpserver: metrics endpoint: %w", err)
		}
	}
	s.MarkReady()
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the handler for the streamable HTTP transport.
//
// The handler mounts:
//   - /health → readiness probe (GET/HEAD only)
//   - /mcp    → streamable HTTP transport
//   - /       → streamable HTTP transport (default mount)
//
// All endpoints carry CORS headers for browser-based MCP clients.
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return corsMiddleware(recoveryMiddleware(securityHeaders(mux), s.logger))
}

// handleHealth serves a readiness/liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"apirisk-mcp"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"apirisk-mcp"}`))
}

// waitForSlot blocks until the rate limiter grants a token or the call
// context is cancelled.
func (s *Server) waitForSlot(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return nil
}

// corsMiddleware adds the CORS headers browser-based MCP clients need.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Vary on Origin so caches don't serve a CORS-enabled response
		// to a non-browser client or vice versa.
		w.Header().Add("Vary", "Origin")

		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			strings.Join([]string{
				"Content-Type",
				"Authorization",
				"Mcp-Session-Id",
				"MCP-Protocol-Version",
				"Last-Event-ID",
				"Accept",
			}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware catches handler panics and answers 500 instead of
// killing the connection.
func recoveryMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic in HTTP handler", "err", err, "stack", string(debug.Stack()))

				// Best-effort: if headers were already sent, WriteHeader
				// is a no-op.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds MIME-sniffing and clickjacking protection headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// logToSession sends a structured log message to the MCP client.
func logToSession(ctx context.Context, req *mcp.CallToolRequest, level mcp.LoggingLevel, data any) {
	if req.Session == nil {
		return
	}
	// Best-effort: log delivery is advisory; failure does not affect
	// tool execution and there is no meaningful recovery action.
	_ = req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: "apirisk",
		Data:   data,
	})
}

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the LLM can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// boolPtr returns a pointer to b. Used for optional bool fields in the SDK.
func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

const serverInstructions = `You are operating apirisk — a rule-based risk detection and aggregation engine for discovered API route inventories.

## WHAT THIS SERVER DOES

apirisk evaluates a fixed registry of security, performance, and reliability rules against API route inventories (the JSON/YAML shape produced by route discovery pipelines), and folds per-file evidence (findings, coverage, churn) into weighted per-component risk scores with P0-P3 priority bands. It never sends network traffic; every tool is a local file operation.

## TOOL SELECTION GUIDE

| User intent | Tool |
|---|---|
| "What risks does this API surface have?" | detect_risks |
| "Which rules do you check?" | list_rules |
| "Score the components of this run" | aggregate_risks |
| "Show me what a run recorded" | read_run |

## TYPICAL WORKFLOWS

### Route assessment
1. list_rules → see what will be checked (optional)
2. detect_risks with {"routes_file": "routes.json"} → prioritized risks

### Evidence aggregation
1. read_run → confirm the run has findings/coverage/churn records
2. aggregate_risks → weighted component scores, bands, recommendations

## INTERPRETING RESULTS

- Severity (critical > high > medium > low) ranks individual rule hits; risks on admin routes sort first within a severity.
- Score (0-100, clamped) is the weighted component aggregate; bands map scores to priorities (default: P0 >= 80, P1 >= 65, P2 >= 50, P3 otherwise).
- Confidence counts how many of the three signals (findings, coverage, churn) contributed: 0.33, 0.67, or 1.0.

## ERROR RECOVERY

- "routes_file is required" → ask the user for the route inventory path
- "no such run" → call read_run with the exact run ID from the runs directory, or pass an absolute run path
- "rule collision" → the custom rules file redefines a built-in ID; rename the custom rule
- Malformed YAML/JSON errors name the offending file; fix and retry`
