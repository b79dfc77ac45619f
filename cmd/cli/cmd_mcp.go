package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/apirisk/apirisk/pkg/cli"
	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/duration"
	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/mcpserver"
	"github.com/apirisk/apirisk/pkg/rules"
	"github.com/apirisk/apirisk/pkg/scoring"
)

// runMCP starts the MCP (Model Context Protocol) server.
// Supports two transport modes:
//   - --stdio (default): For IDE integrations (VS Code, Claude Desktop, Cursor)
//   - --http <addr>:     For remote/Docker deployments
func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	stdio := fs.Bool("stdio", true, "Use stdio transport (default, for IDE integration)")
	httpAddr := fs.String("http", "", "HTTP address to listen on (e.g. :8080). Disables stdio.")
	runsDir := fs.String("runs-dir", os.Getenv(defaults.RunsDirEnv), "Runs root directory")
	rulesFile := fs.String("rules", envOrDefault("APIRISK_RULES_FILE", ""), "Custom rule YAML loaded into every detection call")
	scoringConfig := fs.String("scoring-config", envOrDefault("APIRISK_SCORING_CONFIG", ""), "Scoring config YAML for aggregation calls")
	metricsAddr := fs.String("metrics", envOrDefault("APIRISK_METRICS_ADDR", ""), "Prometheus listen address (e.g. :9090)")
	rateLimit := fs.Float64("rate-limit", defaults.MCPRatePerSecond, "Sustained tool calls per second")
	rateBurst := fs.Int("rate-burst", defaults.MCPRateBurst, "Tool call burst size")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: apirisk mcp [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Start an MCP server exposing risk detection and aggregation tools.\n\n")
		fmt.Fprintf(os.Stderr, "Transports:\n")
		fmt.Fprintf(os.Stderr, "  --stdio          Stdio transport for IDE integration (default)\n")
		fmt.Fprintf(os.Stderr, "  --http <addr>    Streamable HTTP transport for remote/Docker\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  %s        Runs root directory (same as --runs-dir)\n", defaults.RunsDirEnv)
		fmt.Fprintf(os.Stderr, "  APIRISK_RULES_FILE      Custom rule YAML (same as --rules)\n")
		fmt.Fprintf(os.Stderr, "  APIRISK_SCORING_CONFIG  Scoring config YAML (same as --scoring-config)\n")
		fmt.Fprintf(os.Stderr, "  APIRISK_METRICS_ADDR    Prometheus listen address (same as --metrics)\n")
		fmt.Fprintf(os.Stderr, "  APIRISK_HTTP_ADDR       HTTP listen address (same as --http)\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  apirisk mcp --stdio\n")
		fmt.Fprintf(os.Stderr, "  apirisk mcp --http :8080 --metrics :9090\n")
		fmt.Fprintf(os.Stderr, "  %s=/data/runs apirisk mcp --http :8080\n\n", defaults.RunsDirEnv)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(defaults.ExitUserError)
	}

	// Allow env var override for HTTP address (useful in Docker/K8s)
	if *httpAddr == "" {
		if envAddr := os.Getenv("APIRISK_HTTP_ADDR"); envAddr != "" {
			*httpAddr = envAddr
		}
	}

	// --- Startup validation: fail fast here, not on the first tool call ---
	if *rulesFile != "" {
		defs, err := rules.LoadFile(*rulesFile, rules.DefaultRegistry().IDSet())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: custom rules %q: %v\n", *rulesFile, err)
			fmt.Fprintf(os.Stderr, "hint: set --rules or APIRISK_RULES_FILE to a valid rule YAML file\n")
			os.Exit(defaults.ExitUserError)
		}
		fmt.Fprintf(os.Stderr, "apirisk-mcp: custom rules: %s (%d rules loaded)\n", *rulesFile, len(defs))
	}
	if *scoringConfig != "" {
		if _, err := os.Stat(*scoringConfig); err != nil {
			fmt.Fprintf(os.Stderr, "error: scoring config %q: %v\n", *scoringConfig, err)
			os.Exit(defaults.ExitUserError)
		}
		if _, err := scoring.LoadConfig(*scoringConfig); err != nil {
			fmt.Fprintf(os.Stderr, "error: scoring config %q: %v\n", *scoringConfig, err)
			os.Exit(defaults.ExitUserError)
		}
	}
	if _, err := evidence.NewManager(*runsDir, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: runs directory: %v\n", err)
		fmt.Fprintf(os.Stderr, "hint: set --runs-dir or %s to a writable directory\n", defaults.RunsDirEnv)
		os.Exit(defaults.ExitUserError)
	}

	srv := mcpserver.New(&mcpserver.Config{
		RunsDir:       *runsDir,
		RulesFile:     *rulesFile,
		ScoringConfig: *scoringConfig,
		MetricsAddr:   *metricsAddr,
		RateLimit:     *rateLimit,
		RateBurst:     *rateBurst,
	})
	srv.MarkReady()  // Startup validation passed
	defer srv.Stop() // Shuts down the metrics endpoint

	ctx, cancel := cli.SignalContext(0)
	defer cancel()

	if *httpAddr != "" {
		// HTTP transport mode
		*stdio = false

		if *metricsAddr != "" {
			if err := srv.Metrics().Serve(*metricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(defaults.ExitInternalError)
			}
			fmt.Fprintf(os.Stderr, "apirisk-mcp: metrics listening on %s\n", *metricsAddr)
		}

		httpSrv := &http.Server{
			Addr:              *httpAddr,
			Handler:           srv.HTTPHandler(),
			ReadHeaderTimeout: duration.ServerReadHeader,
			ReadTimeout:       duration.ServerRead,
			// WriteTimeout intentionally 0: streamable HTTP responses are
			// long-lived and any non-zero value sets an absolute deadline
			// that kills them. ReadHeaderTimeout + ReadTimeout protect
			// against slowloris.
			IdleTimeout:    duration.ServerIdle,
			MaxHeaderBytes: 1 << 20, // 1 MB
		}

		go func() {
			<-ctx.Done()
			// Graceful shutdown: drain in-flight requests
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), duration.ServerShutdown)
			defer shutdownCancel()
			fmt.Fprintln(os.Stderr, "apirisk-mcp: shutting down gracefully")
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "apirisk-mcp: listening on %s (HTTP transport)\n", *httpAddr)

		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(defaults.ExitInternalError)
		}
		return
	}

	// Stdio transport mode (default)
	if *stdio {
		if err := srv.RunStdio(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(defaults.ExitInternalError)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "error: no transport selected, use --stdio or --http <addr>")
	os.Exit(defaults.ExitUserError)
}

// envOrDefault returns the environment variable value if set, otherwise the default.
func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
