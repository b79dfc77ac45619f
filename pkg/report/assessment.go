// Package report renders assessment results and run summaries as
// markdown and JSON artifacts.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/apirisk/apirisk/pkg/jsonutil"
	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/templates"
)

// reportFuncs extends the sprig function map with the helpers the
// built-in templates use.
func reportFuncs() template.FuncMap {
	titler := cases.Title(language.English)

	funcs := sprig.TxtFuncMap()
	funcs["titleCase"] = titler.String
	funcs["code"] = func(v any) string { return "`" + fmt.Sprint(v) + "`" }
	funcs["severityIcon"] = severityIcon
	funcs["cweLink"] = cweLink
	funcs["owaspLink"] = owaspLink
	return funcs
}

// severityIcon returns an indicator glyph for a severity level.
func severityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "⚪"
	}
}

// cweLink returns the MITRE reference URL for an ID like "CWE-306".
func cweLink(id string) string {
	num := strings.TrimPrefix(strings.ToUpper(id), "CWE-")
	return fmt.Sprintf("https://cwe.mitre.org/data/definitions/%s.html", num)
}

// owaspLink returns the OWASP Top 10 URL for an ID like "A07:2021".
func owaspLink(id string) string {
	normalized := strings.ToLower(strings.ReplaceAll(id, ":", "-"))
	return fmt.Sprintf("https://owasp.org/Top10/%s/", normalized)
}

var assessmentTmpl = template.Must(template.New("assessment.md.tmpl").
	Funcs(reportFuncs()).
	ParseFS(templates.FS, "assessment.md.tmpl"))

type assessmentGroup struct {
	Heading string
	Risks   []risk.Risk
}

type assessmentData struct {
	Groups []assessmentGroup
}

// buildAssessmentData groups risks by category, categories alphabetical,
// highest severity first within each. The grouping is stable so equal
// severities keep their prioritized order.
func buildAssessmentData(risks []risk.Risk) assessmentData {
	grouped := map[risk.Category][]risk.Risk{}
	for _, r := range risks {
		grouped[r.Category] = append(grouped[r.Category], r)
	}

	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	titler := cases.Title(language.English)
	data := assessmentData{}
	for _, c := range categories {
		rs := grouped[risk.Category(c)]
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Score() > rs[j].Score()
		})
		data.Groups = append(data.Groups, assessmentGroup{
			Heading: titler.String(c) + " Risks",
			Risks:   rs,
		})
	}
	return data
}

// RisksMarkdown renders the risk assessment document: risks grouped by
// category, highest severity first within each group.
func RisksMarkdown(risks []risk.Risk) (string, error) {
	var buf bytes.Buffer
	if err := assessmentTmpl.Execute(&buf, buildAssessmentData(risks)); err != nil {
		return "", fmt.Errorf("report: render assessment: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// WriteRisksMarkdown writes the assessment document to dest, creating
// parent directories as needed.
func WriteRisksMarkdown(risks []risk.Risk, dest string) error {
	content, err := RisksMarkdown(risks)
	if err != nil {
		return err
	}
	return writeFile(dest, []byte(content))
}

// WriteRisksJSON writes the prioritized risks as an indented JSON array.
func WriteRisksJSON(risks []risk.Risk, dest string) error {
	if risks == nil {
		risks = []risk.Risk{}
	}
	data, err := jsonutil.MarshalIndent(risks, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode risks: %w", err)
	}
	return writeFile(dest, data)
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("report: create output directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("report: write %s: %w", dest, err)
	}
	return nil
}
