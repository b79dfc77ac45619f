// Package mcpserver exposes apirisk as a Model Context Protocol (MCP)
// server, letting AI assistants run rule-based risk detection and risk
// aggregation over discovered API route inventories through natural
// conversation.
//
// # Capabilities
//
//   - detect_risks:    evaluate the rule registry against a routes file
//   - list_rules:      browse built-in and custom rule definitions
//   - aggregate_risks: fold a run's evidence into component risk scores
//   - read_run:        inspect a run's manifest and evidence records
//
// Every tool ships a complete JSON schema, read-only annotations where
// they apply, and actionable error text so an agent can self-correct.
//
// # Transports
//
//   - stdio: communicates over stdin/stdout (default, IDE integrations)
//   - HTTP:  streamable HTTP for remote deployments, with /health
//
// Tool calls share a token-bucket rate limit, and an optional Prometheus
// endpoint exports per-tool call counters.
//
// # Usage
//
//	srv := mcpserver.New(&mcpserver.Config{RunsDir: "~/.apirisk/runs"})
//	err := srv.RunStdio(ctx)
package mcpserver
