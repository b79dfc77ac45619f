package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/apirisk/apirisk/pkg/evidence"
	"github.com/apirisk/apirisk/pkg/jsonutil"
	"github.com/apirisk/apirisk/templates"
)

// RunSummary is the reportable view of one run: manifest header plus the
// persisted risk and recommendation records.
type RunSummary struct {
	RunID           string                          `json:"run_id"`
	GeneratedAt     string                          `json:"generated_at"`
	Target          evidence.TargetMetadata         `json:"target"`
	Counts          map[string]int                  `json:"counts"`
	Risks           []evidence.RiskRecord           `json:"risks"`
	Recommendations []evidence.RecommendationRecord `json:"recommendations"`
	Diagnostics     []string                        `json:"diagnostics"`
}

// BuildRunSummary assembles a summary from the run's manifest and
// evidence log, risks ordered by descending score.
func BuildRunSummary(handle *evidence.Handle, reader *evidence.Reader) (*RunSummary, error) {
	risks, err := reader.ReadRisks()
	if err != nil {
		return nil, err
	}
	recommendations, err := reader.ReadRecommendations()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].Score > risks[j].Score
	})

	counts := make(map[string]int, len(handle.Manifest.Counts))
	for k, v := range handle.Manifest.Counts {
		counts[k] = v
	}

	return &RunSummary{
		RunID:           handle.RunID,
		GeneratedAt:     evidence.UTCNow(),
		Target:          handle.Manifest.Target,
		Counts:          counts,
		Risks:           risks,
		Recommendations: recommendations,
		Diagnostics:     handle.Manifest.Diagnostics,
	}, nil
}

var runTmpl = template.Must(template.New("run.md.tmpl").
	Funcs(reportFuncs()).
	ParseFS(templates.FS, "run.md.tmpl"))

type countRow struct {
	Kind  string
	Count int
}

type riskRow struct {
	evidence.RiskRecord
	FactorSummary string
}

type runReportData struct {
	*RunSummary
	CountRows []countRow
	RiskRows  []riskRow
}

func buildRunReportData(s *RunSummary) runReportData {
	data := runReportData{RunSummary: s}

	kinds := make([]string, 0, len(s.Counts))
	for kind := range s.Counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		data.CountRows = append(data.CountRows, countRow{Kind: kind, Count: s.Counts[kind]})
	}

	for _, r := range s.Risks {
		data.RiskRows = append(data.RiskRows, riskRow{
			RiskRecord:    r,
			FactorSummary: factorSummary(r.Factors),
		})
	}
	return data
}

func factorSummary(factors map[string]float64) string {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, factors[name]))
	}
	return strings.Join(parts, ", ")
}

// Markdown renders the run report document.
func (s *RunSummary) Markdown() (string, error) {
	var buf bytes.Buffer
	if err := runTmpl.Execute(&buf, buildRunReportData(s)); err != nil {
		return "", fmt.Errorf("report: render run report: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// WriteArtifacts renders the run report and writes report.md and
// report.json into the run's artifacts directory, returning both paths.
func WriteArtifacts(handle *evidence.Handle, reader *evidence.Reader) (string, string, error) {
	summary, err := BuildRunSummary(handle, reader)
	if err != nil {
		return "", "", err
	}

	md, err := summary.Markdown()
	if err != nil {
		return "", "", err
	}
	mdPath := filepath.Join(handle.ArtifactsDir, "report.md")
	if err := writeFile(mdPath, []byte(md)); err != nil {
		return "", "", err
	}

	data, err := jsonutil.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("report: encode run summary: %w", err)
	}
	jsonPath := filepath.Join(handle.ArtifactsDir, "report.json")
	if err := writeFile(jsonPath, data); err != nil {
		return "", "", err
	}
	return mdPath, jsonPath, nil
}
