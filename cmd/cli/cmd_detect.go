package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apirisk/apirisk/pkg/assess"
	"github.com/apirisk/apirisk/pkg/cli"
	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/input"
	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/ui"
)

// detectedRisk is a risk annotated with its stable fingerprint for
// machine output, so downstream tooling can dedup across runs.
type detectedRisk struct {
	risk.Risk
	Fingerprint string `json:"fingerprint"`
}

// detectOutput is the -json / -output document shape.
type detectOutput struct {
	RoutesChecked  int            `json:"routes_checked"`
	TotalRisks     int            `json:"total_risks"`
	SeverityCounts map[string]int `json:"severity_counts"`
	Risks          []detectedRisk `json:"risks"`
}

// runDetect evaluates the rule registry against a route snapshot.
func runDetect() {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)

	routesFile := fs.String("routes", "", "Route snapshot file (JSON or YAML)")
	stdinInput := fs.Bool("stdin", false, "Read the route snapshot from stdin")
	rulesFile := fs.String("rules", "", "Custom rule YAML file merged into the built-in registry")
	var disabled input.StringSliceFlag
	fs.Var(&disabled, "disable", "Rule IDs to skip - comma-separated or repeated")
	var overrides input.KeyValueFlag
	fs.Var(&overrides, "override", "Severity override RULE=SEVERITY - repeatable")
	minSeverity := fs.String("min-severity", "", "Only report risks at or above this severity (low|medium|high|critical)")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(os.Args[2:])
	cf.Apply()

	source := &input.RouteSource{File: *routesFile, Stdin: *stdinInput}
	if source.Describe() == "" {
		exitWithUsage("a route snapshot is required",
			"apirisk detect -routes routes.json [flags]  (or pipe a snapshot with -stdin)")
	}

	ui.PrintMiniBanner()
	ui.PrintSection("Risk Detection")
	ui.PrintConfigLine("Routes", source.Describe())
	if *rulesFile != "" {
		ui.PrintConfigLine("Custom Rules", *rulesFile)
	}
	if len(disabled) > 0 {
		ui.PrintConfigLine("Disabled", strings.Join(disabled, ", "))
	}
	if len(overrides) > 0 {
		ui.PrintConfigLine("Overrides", overrides.String())
	}

	routes, err := source.Load()
	if err != nil {
		exitWithUserError("failed to load routes: %v", err)
	}
	ui.PrintConfigLine("Loaded", fmt.Sprintf("%d routes", len(routes)))

	risks, err := assess.Run(routes, assess.Options{
		DisabledRules:     disabled,
		CustomRulesFile:   *rulesFile,
		SeverityOverrides: overrides,
	})
	if err != nil {
		exitWithUserError("assessment failed: %v", err)
	}

	if *minSeverity != "" {
		risks, err = filterMinSeverity(risks, *minSeverity)
		if err != nil {
			exitWithUserError("%v", err)
		}
	}

	counts := tallySeverities(risks)

	if cf.JSON {
		if err := cli.PrintJSON(os.Stdout, buildDetectOutput(len(routes), risks, counts)); err != nil {
			exitWithError("failed to encode results: %v", err)
		}
	} else {
		formatter := ui.NewRiskFormatter(cf.Verbose)
		for _, r := range risks {
			fmt.Println(formatter.FormatRisk(string(r.Severity), string(r.Category), r.Source, r.Route, r.Title))
		}
		if !ui.IsSilent() {
			fmt.Fprintf(os.Stderr, "\n%d risks across %d routes: %s\n",
				len(risks), len(routes), ui.FormatSeverityCounts(counts))
		}
	}

	if cf.Output != "" {
		if err := cli.WriteJSONFile(cf.Output, buildDetectOutput(len(routes), risks, counts)); err != nil {
			exitWithError("%v", err)
		}
		ui.PrintSuccess("Results saved to " + cf.Output)
	}

	if len(risks) > 0 {
		os.Exit(defaults.ExitRiskFound)
	}
}

// filterMinSeverity drops risks below the given severity level.
func filterMinSeverity(risks []risk.Risk, level string) ([]risk.Risk, error) {
	floor, err := risk.ParseSeverity(level)
	if err != nil {
		return nil, fmt.Errorf("invalid -min-severity: %w", err)
	}
	kept := risks[:0]
	for _, r := range risks {
		if r.Severity.Score() >= floor.Score() {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// tallySeverities counts risks per severity label.
func tallySeverities(risks []risk.Risk) map[string]int {
	counts := make(map[string]int)
	for _, r := range risks {
		counts[string(r.Severity)]++
	}
	return counts
}

func buildDetectOutput(routesChecked int, risks []risk.Risk, counts map[string]int) detectOutput {
	annotated := make([]detectedRisk, 0, len(risks))
	for _, r := range risks {
		annotated = append(annotated, detectedRisk{Risk: r, Fingerprint: r.Fingerprint()})
	}
	return detectOutput{
		RoutesChecked:  routesChecked,
		TotalRisks:     len(risks),
		SeverityCounts: counts,
		Risks:          annotated,
	}
}
