// Package defaults provides canonical default values for the entire codebase.
// This is the single source of truth for runtime configuration defaults.
package defaults

// Version is the current apirisk version.
const Version = "1.2.0"

// ToolName is the canonical binary/tool name used in logs, manifests,
// and the MCP server identity.
const ToolName = "apirisk"

// ToolNameDisplay is the human-facing tool name for banners and reports.
const ToolNameDisplay = "APIRisk"

// RunsDirEnv is the environment variable that overrides the runs root.
const RunsDirEnv = "APIRISK_RUNS_DIR"

// RunsDirName is the per-user directory (under $HOME) holding run state.
const RunsDirName = ".apirisk"

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit
	ExitRiskFound     = 1 // One or more risks detected or aggregation produced records
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitInternalError = 4 // Unexpected internal error
)

// MCP server defaults.
const (
	// MCPRatePerSecond is the sustained tool-call rate allowed per client.
	MCPRatePerSecond = 5

	// MCPRateBurst is the tool-call burst allowed per client.
	MCPRateBurst = 10
)
