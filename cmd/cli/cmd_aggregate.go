package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apirisk/apirisk/pkg/cli"
	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/scoring"
	"github.com/apirisk/apirisk/pkg/ui"
)

// aggregateOutput is the -json / -output document shape.
type aggregateOutput struct {
	Run             string                          `json:"run"`
	Components      int                             `json:"components"`
	BandCounts      map[string]int                  `json:"band_counts"`
	Records         []evidence.RiskRecord           `json:"records"`
	Recommendations []evidence.RecommendationRecord `json:"recommendations,omitempty"`
}

// runAggregate scores a run's evidence into per-component risk records.
func runAggregate() {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)

	run := fs.String("run", "", "Run ID or run directory path")
	configFile := fs.String("config", "", "Scoring config YAML (weights, bands, caps)")
	runsDir := fs.String("runs-dir", "", "Runs root directory (default: $"+defaults.RunsDirEnv+" or ~/"+defaults.RunsDirName+")")
	recommend := fs.Bool("recommend", false, "Also generate recommendations from the scored risks")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(os.Args[2:])
	cf.Apply()

	if *run == "" {
		exitWithUsage("a run is required", "apirisk aggregate -run <run-id> [flags]")
	}

	ui.PrintMiniBanner()
	ui.PrintSection("Risk Aggregation")
	ui.PrintConfigLine("Run", *run)
	if *configFile != "" {
		ui.PrintConfigLine("Scoring Config", *configFile)
	}
	if *runsDir != "" {
		ui.PrintConfigLine("Runs Dir", *runsDir)
	}

	logger := cf.Logger()
	records, err := scoring.AggregateRunIn(*runsDir, *run, *configFile, logger)
	if err != nil {
		exitWithUserError("aggregation failed: %v", err)
	}

	var recommendations []evidence.RecommendationRecord
	if *recommend {
		recommendations, err = scoring.RecommendRunIn(*runsDir, *run, records, logger)
		if err != nil {
			exitWithError("recommendation generation failed: %v", err)
		}
	}

	bands := tallyBands(records)

	if cf.JSON {
		out := aggregateOutput{
			Run:             *run,
			Components:      len(records),
			BandCounts:      bands,
			Records:         records,
			Recommendations: recommendations,
		}
		if err := cli.PrintJSON(os.Stdout, out); err != nil {
			exitWithError("failed to encode results: %v", err)
		}
	} else {
		formatter := ui.NewRiskFormatter(cf.Verbose)
		for _, rec := range records {
			fmt.Println(formatter.FormatComponentRisk(rec.Band, rec.Component, rec.Score, rec.Confidence))
		}
		if !ui.IsSilent() {
			fmt.Fprintf(os.Stderr, "\n%d components scored%s\n", len(records), bandSummary(bands))
			if len(recommendations) > 0 {
				fmt.Fprintf(os.Stderr, "%d recommendations written\n", len(recommendations))
			}
		}
	}

	if cf.Output != "" {
		out := aggregateOutput{
			Run:             *run,
			Components:      len(records),
			BandCounts:      bands,
			Records:         records,
			Recommendations: recommendations,
		}
		if err := cli.WriteJSONFile(cf.Output, out); err != nil {
			exitWithError("%v", err)
		}
		ui.PrintSuccess("Results saved to " + cf.Output)
	}

	if len(records) > 0 {
		os.Exit(defaults.ExitRiskFound)
	}
}

// tallyBands counts risk records per priority band.
func tallyBands(records []evidence.RiskRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Band]++
	}
	return counts
}

// bandSummary renders " (P0=1, P1=2)" from band counts, highest band
// first, empty bands omitted. Returns "" when nothing was scored.
func bandSummary(bands map[string]int) string {
	order := []string{"P0", "P1", "P2", "P3"}
	var parts []string
	for _, band := range order {
		if n := bands[band]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", band, n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
