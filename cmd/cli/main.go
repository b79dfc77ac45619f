package main

import (
	"fmt"
	"os"

	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	switch os.Args[1] {
	case "detect", "assess":
		runDetect()
	case "aggregate", "agg":
		runAggregate()
	case "rules":
		runRules()
	case "report":
		runReport()
	case "mcp":
		runMCP()
	case "-h", "--help", "help":
		printUsage()
		os.Exit(defaults.ExitSuccess)
	case "-v", "--version", "version":
		ui.PrintMiniBanner()
		os.Exit(defaults.ExitSuccess)
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", os.Args[1]))
		fmt.Fprintln(os.Stderr)
		printUsage()
		os.Exit(defaults.ExitUserError)
	}
}

func printUsage() {
	ui.PrintMiniBanner()

	fmt.Println(ui.SectionStyle.Render("API RISK ASSESSMENT"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("The Workflow:"))
	fmt.Println()
	fmt.Printf("    %s  Evaluate risk rules against a discovered route snapshot\n", ui.ConfigValueStyle.Render("1. detect   "))
	fmt.Printf("    %s  Score components from collected evidence (findings, coverage, churn)\n", ui.ConfigValueStyle.Render("2. aggregate"))
	fmt.Printf("    %s  Render a run's risks and recommendations as markdown + JSON\n", ui.ConfigValueStyle.Render("3. report   "))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("Quick Example:"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("apirisk detect -routes routes.json"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("apirisk aggregate -run 20260825_140000Z"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("apirisk report -run 20260825_140000Z"))
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("detect   "), "Match built-in and custom rules against routes, print prioritized risks")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("aggregate"), "Compute weighted component risk scores from a run's evidence")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("rules    "), "Inspect the rule registry (list, show, validate)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("report   "), "Write run report artifacts (markdown + JSON summary)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("mcp      "), "Start the MCP server for AI assistant integration")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("version  "), "Print version")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("EXIT CODES"))
	fmt.Println()
	fmt.Printf("    %d  clean run, nothing detected\n", defaults.ExitSuccess)
	fmt.Printf("    %d  risks detected or risk records produced\n", defaults.ExitRiskFound)
	fmt.Printf("    %d  usage or input error\n", defaults.ExitUserError)
	fmt.Printf("    %d  internal error\n", defaults.ExitInternalError)
	fmt.Println()

	fmt.Println(ui.HelpStyle.Render("Run 'apirisk <command> -h' for command flags."))
}
