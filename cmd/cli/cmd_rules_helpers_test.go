package main

import (
	"testing"

	"github.com/apirisk/apirisk/pkg/rules"
)

func TestCollectRuleRowsUnfiltered(t *testing.T) {
	rows := collectRuleRows(rules.DefaultRegistry(), "", "")
	if len(rows) != 16 {
		t.Fatalf("rows = %d, want 16 built-in rules", len(rows))
	}
	for _, row := range rows {
		if row.Source != "built-in" {
			t.Errorf("rule %s source = %q, want built-in", row.ID, row.Source)
		}
	}
}

func TestCollectRuleRowsCategoryFilter(t *testing.T) {
	rows := collectRuleRows(rules.DefaultRegistry(), "Security", "")
	if len(rows) == 0 {
		t.Fatal("security filter returned no rules")
	}
	for _, row := range rows {
		if row.Category != "security" {
			t.Errorf("rule %s category = %q, want security", row.ID, row.Category)
		}
	}
}

func TestCollectRuleRowsSeverityFilter(t *testing.T) {
	rows := collectRuleRows(rules.DefaultRegistry(), "", "high")
	for _, row := range rows {
		if row.Severity != "high" {
			t.Errorf("rule %s severity = %q, want high", row.ID, row.Severity)
		}
	}
}

func TestCollectRuleRowsBothFilters(t *testing.T) {
	all := collectRuleRows(rules.DefaultRegistry(), "security", "")
	narrowed := collectRuleRows(rules.DefaultRegistry(), "security", "medium")
	if len(narrowed) >= len(all) {
		t.Errorf("adding a severity filter should narrow results: %d >= %d", len(narrowed), len(all))
	}
}

func TestRuleSource(t *testing.T) {
	if got := ruleSource("SEC-001"); got != "built-in" {
		t.Errorf("ruleSource(SEC-001) = %q, want built-in", got)
	}
	if got := ruleSource("CUSTOM-999"); got != "custom" {
		t.Errorf("ruleSource(CUSTOM-999) = %q, want custom", got)
	}
}
