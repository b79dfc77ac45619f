// Package rules implements the risk rule engine: a fixed catalogue of
// built-in security, performance, and reliability rules plus a declarative
// YAML condition DSL for custom rules. Built-in and custom rules share the
// same evaluation contract and are collision-checked by ID before use.
package rules

import (
	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// Rule is the contract shared by built-in and custom rules.
//
// Per-route rules implement Evaluate and inherit the default EvaluateAll
// loop. Aggregate rules (naming consistency, health-check presence) inspect
// the whole route list in EvaluateAll and return nil from Evaluate.
type Rule interface {
	// ID returns the stable rule identifier used for collision checks
	// and as the Source of emitted risks.
	ID() string

	// Category returns the rule's risk category.
	Category() risk.Category

	// Severity returns the rule's base severity, before any escalation.
	Severity() risk.Severity

	// Title returns the short human-readable rule name.
	Title() string

	// Description returns what the rule detects.
	Description() string

	// Evaluate inspects a single route and returns a risk, or nil when
	// the route does not match.
	Evaluate(rt route.Route) *risk.Risk

	// EvaluateAll evaluates the full route list in input order.
	EvaluateAll(routes []route.Route) []risk.Risk
}

// meta carries the identifying fields every rule exposes.
type meta struct {
	id          string
	category    risk.Category
	severity    risk.Severity
	title       string
	description string
}

func (m meta) ID() string              { return m.id }
func (m meta) Category() risk.Category { return m.category }
func (m meta) Severity() risk.Severity { return m.severity }
func (m meta) Title() string           { return m.title }
func (m meta) Description() string     { return m.description }

// routeRule is a per-route rule backed by an evaluation function.
type routeRule struct {
	meta
	eval func(m meta, rt route.Route) *risk.Risk
}

// Compile-time interface check.
var _ Rule = (*routeRule)(nil)

func (r *routeRule) Evaluate(rt route.Route) *risk.Risk {
	return r.eval(r.meta, rt)
}

func (r *routeRule) EvaluateAll(routes []route.Route) []risk.Risk {
	var risks []risk.Risk
	for _, rt := range routes {
		if rk := r.Evaluate(rt); rk != nil {
			risks = append(risks, *rk)
		}
	}
	return risks
}

// aggregateRule inspects the whole route list at once and emits at most
// one risk. Evaluate always returns nil for aggregate rules.
type aggregateRule struct {
	meta
	evalAll func(m meta, routes []route.Route) []risk.Risk
}

// Compile-time interface check.
var _ Rule = (*aggregateRule)(nil)

func (r *aggregateRule) Evaluate(route.Route) *risk.Risk {
	return nil
}

func (r *aggregateRule) EvaluateAll(routes []route.Route) []risk.Risk {
	if len(routes) == 0 {
		return nil
	}
	return r.evalAll(r.meta, routes)
}
