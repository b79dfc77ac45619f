package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/apirisk/apirisk/pkg/cli"
	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/report"
	"github.com/apirisk/apirisk/pkg/ui"
)

// runReport renders a run's evidence into report artifacts.
func runReport() {
	fs := flag.NewFlagSet("report", flag.ExitOnError)

	run := fs.String("run", "", "Run ID or run directory path")
	runsDir := fs.String("runs-dir", "", "Runs root directory (default: $"+defaults.RunsDirEnv+" or ~/"+defaults.RunsDirName+")")
	markdown := fs.Bool("markdown", false, "Print the markdown report to stdout instead of writing artifacts")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(os.Args[2:])
	cf.Apply()

	if *run == "" {
		exitWithUsage("a run is required", "apirisk report -run <run-id> [flags]")
	}

	logger := cf.Logger()
	manager, err := evidence.NewManager(*runsDir, logger)
	if err != nil {
		exitWithError("failed to open runs directory: %v", err)
	}
	handle, err := manager.LoadRun(*run)
	if err != nil {
		exitWithUserError("failed to load run: %v", err)
	}
	reader := evidence.NewReader(handle, logger)

	// Machine output modes skip the artifact write so they stay
	// side-effect free.
	if cf.JSON || *markdown {
		summary, err := report.BuildRunSummary(handle, reader)
		if err != nil {
			exitWithError("failed to build run summary: %v", err)
		}
		if cf.JSON {
			if err := cli.PrintJSON(os.Stdout, summary); err != nil {
				exitWithError("failed to encode summary: %v", err)
			}
			return
		}
		md, err := summary.Markdown()
		if err != nil {
			exitWithError("failed to render report: %v", err)
		}
		fmt.Print(md)
		return
	}

	ui.PrintMiniBanner()
	ui.PrintSection("Run Report")
	ui.PrintConfigLine("Run", handle.RunID)
	if *runsDir != "" {
		ui.PrintConfigLine("Runs Dir", *runsDir)
	}

	mdPath, jsonPath, err := report.WriteArtifacts(handle, reader)
	if err != nil {
		exitWithError("failed to write report artifacts: %v", err)
	}

	ui.PrintSuccess("Markdown report: " + mdPath)
	ui.PrintSuccess("JSON summary:    " + jsonPath)
}
