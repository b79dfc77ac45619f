// Package assess orchestrates a full rule evaluation pass over a route
// set: registry construction with custom rules, disable filtering,
// severity overrides, and deterministic prioritization.
package assess

import (
	"fmt"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
	"github.com/apirisk/apirisk/pkg/rules"
)

// Options configures one assessment pass.
type Options struct {
	// DisabledRules lists rule IDs skipped during evaluation.
	DisabledRules []string

	// CustomRules holds inline rule definitions, typically from config.
	CustomRules []rules.Definition

	// CustomRulesFile points to a YAML rule file. Empty means none.
	CustomRulesFile string

	// SeverityOverrides remaps the severity of every risk emitted by the
	// named rule. Overrides apply after evaluation and after any DSL
	// escalation, so they always win.
	SeverityOverrides map[string]string
}

// Run evaluates every active rule against the routes and returns the
// prioritized risks. The registry is built fresh per call; any loading or
// validation failure activates nothing and returns the error.
func Run(routes []route.Route, opts Options) ([]risk.Risk, error) {
	overrides, err := parseOverrides(opts.SeverityOverrides)
	if err != nil {
		return nil, err
	}

	reg, err := BuildRegistry(opts)
	if err != nil {
		return nil, err
	}

	risks := reg.EvaluateAll(routes, opts.DisabledRules...)
	for i := range risks {
		if severity, ok := overrides[risks[i].Source]; ok {
			risks[i].Severity = severity
		}
	}

	risk.Prioritize(risks)
	return risks, nil
}

// BuildRegistry returns the built-in registry extended with the options'
// custom rules, validated as one batch.
func BuildRegistry(opts Options) (*rules.Registry, error) {
	reg := rules.DefaultRegistry()
	if opts.CustomRulesFile == "" && len(opts.CustomRules) == 0 {
		return reg, nil
	}
	defs, err := rules.Merge(opts.CustomRulesFile, opts.CustomRules, reg.IDSet())
	if err != nil {
		return nil, err
	}
	if err := reg.AddDefinitions(defs); err != nil {
		return nil, err
	}
	return reg, nil
}

func parseOverrides(raw map[string]string) (map[string]risk.Severity, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]risk.Severity, len(raw))
	for id, value := range raw {
		severity, err := risk.ParseSeverity(value)
		if err != nil {
			return nil, fmt.Errorf("severity override for rule %s: %w", id, err)
		}
		out[id] = severity
	}
	return out, nil
}
