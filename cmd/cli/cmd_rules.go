package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apirisk/apirisk/pkg/assess"
	"github.com/apirisk/apirisk/pkg/cli"
	"github.com/apirisk/apirisk/pkg/rules"
	"github.com/apirisk/apirisk/pkg/ui"
)

// ruleRow is the JSON shape for rule listings.
type ruleRow struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Source   string `json:"source"`
}

// runRules dispatches the rules subcommands: list (default), show, validate.
func runRules() {
	sub := "list"
	args := os.Args[2:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "list", "ls":
		runRulesList(args)
	case "show":
		runRulesShow(args)
	case "validate":
		runRulesValidate(args)
	default:
		exitWithUsage(fmt.Sprintf("unknown rules subcommand %q", sub),
			"apirisk rules [list|show|validate] [flags]")
	}
}

func runRulesList(args []string) {
	fs := flag.NewFlagSet("rules list", flag.ExitOnError)
	rulesFile := fs.String("rules", "", "Custom rule YAML file merged into the built-in registry")
	category := fs.String("category", "", "Filter by category (security|performance|reliability)")
	severity := fs.String("severity", "", "Filter by severity (low|medium|high|critical)")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(args)
	cf.Apply()

	reg, err := assess.BuildRegistry(assess.Options{CustomRulesFile: *rulesFile})
	if err != nil {
		exitWithUserError("failed to build rule registry: %v", err)
	}

	rows := collectRuleRows(reg, *category, *severity)

	if cf.JSON {
		if err := cli.PrintJSON(os.Stdout, rows); err != nil {
			exitWithError("failed to encode rules: %v", err)
		}
		return
	}

	ui.PrintMiniBanner()
	ui.PrintSection("Rule Registry")
	if *rulesFile != "" {
		ui.PrintConfigLine("Custom Rules", *rulesFile)
	}
	if *category != "" || *severity != "" {
		ui.PrintConfigLine("Filter", strings.TrimSpace(*category+" "+*severity))
	}
	fmt.Fprintln(os.Stderr)

	table := &ui.Table{Headers: []string{"ID", "CATEGORY", "SEVERITY", "TITLE", "SOURCE"}}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{row.ID, row.Category, row.Severity, row.Title, row.Source})
	}
	table.SortRowsBy("ID")
	table.Render(os.Stdout)

	if !ui.IsSilent() {
		fmt.Fprintf(os.Stderr, "\n%d rules\n", len(rows))
	}
}

func runRulesShow(args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		exitWithUsage("a rule ID is required", "apirisk rules show <rule-id> [flags]")
	}
	id := args[0]

	fs := flag.NewFlagSet("rules show", flag.ExitOnError)
	rulesFile := fs.String("rules", "", "Custom rule YAML file merged into the built-in registry")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(args[1:])
	cf.Apply()

	reg, err := assess.BuildRegistry(assess.Options{CustomRulesFile: *rulesFile})
	if err != nil {
		exitWithUserError("failed to build rule registry: %v", err)
	}

	rule, ok := reg.Get(id)
	if !ok {
		exitWithUserError("unknown rule %q (try 'apirisk rules list')", id)
	}

	if cf.JSON {
		row := ruleRow{
			ID:       rule.ID(),
			Category: string(rule.Category()),
			Severity: string(rule.Severity()),
			Title:    rule.Title(),
			Source:   ruleSource(rule.ID()),
		}
		if err := cli.PrintJSON(os.Stdout, struct {
			ruleRow
			Description string `json:"description"`
		}{row, rule.Description()}); err != nil {
			exitWithError("failed to encode rule: %v", err)
		}
		return
	}

	ui.PrintMiniBanner()
	ui.PrintSection("Rule " + rule.ID())
	ui.PrintConfigLine("Category", string(rule.Category()))
	ui.PrintConfigLine("Severity", string(rule.Severity()))
	ui.PrintConfigLine("Source", ruleSource(rule.ID()))
	ui.PrintConfigLine("Title", rule.Title())
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  "+rule.Description())
}

func runRulesValidate(args []string) {
	fs := flag.NewFlagSet("rules validate", flag.ExitOnError)
	rulesFile := fs.String("rules", "", "Custom rule YAML file to validate")
	var cf CommonFlags
	cf.Register(fs)

	fs.Parse(args)
	cf.Apply()

	if *rulesFile == "" {
		// Allow "apirisk rules validate custom.yaml" without the flag.
		if rest := fs.Args(); len(rest) > 0 {
			*rulesFile = rest[0]
		}
	}
	if *rulesFile == "" {
		exitWithUsage("a rule file is required", "apirisk rules validate -rules custom.yaml")
	}

	defs, err := rules.LoadFile(*rulesFile, rules.DefaultRegistry().IDSet())
	if err != nil {
		if cf.JSON {
			_ = cli.PrintJSON(os.Stdout, map[string]any{"valid": false, "error": err.Error()})
		}
		exitWithUserError("validation failed: %v", err)
	}

	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.RuleID)
	}

	if cf.JSON {
		if err := cli.PrintJSON(os.Stdout, map[string]any{"valid": true, "rules": ids}); err != nil {
			exitWithError("failed to encode result: %v", err)
		}
		return
	}

	ui.PrintSuccess(fmt.Sprintf("%s: %d rules valid (%s)", *rulesFile, len(defs), strings.Join(ids, ", ")))
}

// collectRuleRows flattens the registry into display rows, applying the
// optional category and severity filters case-insensitively.
func collectRuleRows(reg *rules.Registry, category, severity string) []ruleRow {
	var rows []ruleRow
	for _, rule := range reg.Rules() {
		if category != "" && !strings.EqualFold(string(rule.Category()), category) {
			continue
		}
		if severity != "" && !strings.EqualFold(string(rule.Severity()), severity) {
			continue
		}
		rows = append(rows, ruleRow{
			ID:       rule.ID(),
			Category: string(rule.Category()),
			Severity: string(rule.Severity()),
			Title:    rule.Title(),
			Source:   ruleSource(rule.ID()),
		})
	}
	return rows
}

// ruleSource labels a rule as built-in or custom by membership in the
// default registry.
func ruleSource(id string) string {
	if _, ok := rules.DefaultRegistry().Get(id); ok {
		return "built-in"
	}
	return "custom"
}
