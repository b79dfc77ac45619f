package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apirisk/apirisk/pkg/risk"
)

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleRules = `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: high
    title: "Unauthenticated internal endpoint"
    description: "Internal endpoints must require authentication."
    recommendation: "Add authentication middleware to internal routes."
    match:
      path:
        starts_with: "/internal"
      auth_required:
        equals: false
    severity_escalation:
      - condition:
          path:
            contains: "admin"
        severity: critical
  - rule_id: "CUSTOM-002"
    category: performance
    severity: low
    title: "Unscoped bulk listing"
    description: "Bulk listing endpoints should be scoped."
    recommendation: "Add filter parameters to bulk endpoints."
    match:
      method:
        in: [GET]
      path:
        contains: "/all"
`

func TestLoadFile(t *testing.T) {
	path := writeRuleFile(t, sampleRules)

	defs, err := LoadFile(path, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "CUSTOM-001", defs[0].RuleID)
	assert.Equal(t, risk.SeverityHigh, defs[0].Severity)
	require.Len(t, defs[0].SeverityEscalation, 1)
	assert.Equal(t, risk.SeverityCritical, defs[0].SeverityEscalation[0].Severity)
	assert.Equal(t, "CUSTOM-002", defs[1].RuleID)
	assert.Equal(t, []string{"GET"}, defs[1].Match.Method.In)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRulesNotFound)
}

func TestLoadFileMissingRulesKey(t *testing.T) {
	path := writeRuleFile(t, "{}\n")
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "rules")

	empty := writeRuleFile(t, "# comment only\n")
	_, err = LoadFile(empty, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeRuleFile(t, `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: high
    title: "T"
    description: "D"
    recommendation: "R"
    match:
      path:
        begins_with: "/internal"
`)
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "begins_with")
}

func TestLoadFileBadRegex(t *testing.T) {
	path := writeRuleFile(t, `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: high
    title: "T"
    description: "D"
    recommendation: "R"
    match:
      path:
        regex: "[unclosed"
`)
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "regex")
}

func TestLoadFileBadSeverity(t *testing.T) {
	path := writeRuleFile(t, `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: blocker
    title: "T"
    description: "D"
    recommendation: "R"
    match: {}
`)
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "blocker")
}

func TestLoadFileDuplicateID(t *testing.T) {
	path := writeRuleFile(t, `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: high
    title: "T"
    description: "D"
    recommendation: "R"
    match: {}
  - rule_id: "CUSTOM-001"
    category: security
    severity: low
    title: "T2"
    description: "D2"
    recommendation: "R2"
    match: {}
`)
	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRule)
	assert.Contains(t, err.Error(), "CUSTOM-001")
}

func TestLoadFileBuiltinCollision(t *testing.T) {
	path := writeRuleFile(t, `rules:
  - rule_id: "SEC-001"
    category: security
    severity: high
    title: "T"
    description: "D"
    recommendation: "R"
    match: {}
`)
	_, err := LoadFile(path, DefaultRegistry().IDSet())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuleCollision)
	assert.Contains(t, err.Error(), "SEC-001")
	assert.Contains(t, err.Error(), "unique ID")
}

func TestRegistryLoadCustomFile(t *testing.T) {
	reg := DefaultRegistry()
	require.NoError(t, reg.LoadCustomFile(writeRuleFile(t, sampleRules)))
	assert.Len(t, reg.IDs(), 18)
	assert.Equal(t, "CUSTOM-001", reg.IDs()[16], "customs append after built-ins")
}

func TestRegistryLoadCustomFileEvaluates(t *testing.T) {
	reg := DefaultRegistry()
	require.NoError(t, reg.LoadCustomFile(writeRuleFile(t, sampleRules)))

	custom, ok := reg.Get("CUSTOM-001")
	require.True(t, ok)

	got := custom.Evaluate(mkRoute("POST", "/internal/admin/jobs", false))
	require.NotNil(t, got)
	assert.Equal(t, risk.SeverityCritical, got.Severity)

	base := custom.Evaluate(mkRoute("POST", "/internal/jobs", false))
	require.NotNil(t, base)
	assert.Equal(t, risk.SeverityHigh, base.Severity)

	assert.Nil(t, custom.Evaluate(mkRoute("POST", "/internal/jobs", true)))
}

func TestRegistryLoadCustomFileAtomic(t *testing.T) {
	reg := DefaultRegistry()
	before := len(reg.IDs())

	// Second rule collides with a built-in, so nothing may be added.
	path := writeRuleFile(t, `rules:
  - rule_id: "CUSTOM-001"
    category: security
    severity: high
    title: "T"
    description: "D"
    recommendation: "R"
    match: {}
  - rule_id: "PERF-001"
    category: performance
    severity: low
    title: "T2"
    description: "D2"
    recommendation: "R2"
    match: {}
`)
	err := reg.LoadCustomFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuleCollision)
	assert.Len(t, reg.IDs(), before)
	_, ok := reg.Get("CUSTOM-001")
	assert.False(t, ok)
}

func TestMergeFileAndInline(t *testing.T) {
	path := writeRuleFile(t, sampleRules)
	inline := []Definition{{
		RuleID:         "CUSTOM-003",
		Category:       risk.CategoryReliability,
		Severity:       risk.SeverityLow,
		Title:          "Inline rule",
		Description:    "Defined inline.",
		Recommendation: "Keep it.",
		Match:          &Match{},
	}}

	merged, err := Merge(path, inline, DefaultRegistry().IDSet())
	require.NoError(t, err)
	require.Len(t, merged, 3)
	assert.Equal(t, "CUSTOM-001", merged[0].RuleID)
	assert.Equal(t, "CUSTOM-002", merged[1].RuleID)
	assert.Equal(t, "CUSTOM-003", merged[2].RuleID)
}

func TestMergeCrossSourceDuplicate(t *testing.T) {
	path := writeRuleFile(t, sampleRules)
	inline := []Definition{{
		RuleID:         "CUSTOM-001",
		Category:       risk.CategorySecurity,
		Severity:       risk.SeverityLow,
		Title:          "Clashing inline rule",
		Description:    "Same ID as the file rule.",
		Recommendation: "Rename it.",
		Match:          &Match{},
	}}

	_, err := Merge(path, inline, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRule)
	assert.Contains(t, err.Error(), "CUSTOM-001")
}

func TestMergeInlineOnly(t *testing.T) {
	inline := []Definition{{
		RuleID:         "CUSTOM-010",
		Category:       risk.CategorySecurity,
		Severity:       risk.SeverityMedium,
		Title:          "Inline only",
		Description:    "No file involved.",
		Recommendation: "Fine.",
		Match:          &Match{},
	}}
	merged, err := Merge("", inline, DefaultRegistry().IDSet())
	require.NoError(t, err)
	assert.Len(t, merged, 1)
}
