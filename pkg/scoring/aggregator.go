package scoring

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/apirisk/apirisk/pkg/evidence"
)

// severityWeights is the security sub-score contribution per finding.
// high and critical intentionally carry the same weight; severities
// outside the table contribute 1.0.
var severityWeights = map[string]float64{
	"critical": 2.0,
	"high":     2.0,
	"medium":   1.0,
	"low":      0.5,
}

// EvidenceSource yields a run's raw signals. *evidence.Reader implements
// it; tests may substitute in-memory fixtures.
type EvidenceSource interface {
	ReadFindings() ([]evidence.FindingRecord, error)
	ReadCoverage() ([]evidence.CoverageRecord, error)
	ReadChurn() ([]evidence.ChurnRecord, error)
}

// RecordWriter is the sink aggregated batches are persisted to.
// *evidence.Writer implements it.
type RecordWriter interface {
	WriteRecords(recordType string, records []any) (int, error)
}

// Aggregator combines findings, coverage, and churn evidence into one
// weighted risk score per component.
type Aggregator struct {
	Config Config

	logger *slog.Logger
}

// NewAggregator returns an aggregator using the given scoring profile.
func NewAggregator(cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{Config: cfg, logger: logger}
}

// Aggregate reads the run's findings, coverage, and churn, scores every
// component that appears in any signal, persists the batch under the
// "risks" record type in a single write, and returns the records. A run
// with no evidence yields an empty slice and writes nothing.
func (a *Aggregator) Aggregate(reader EvidenceSource, writer RecordWriter, ids *evidence.IDGenerator) ([]evidence.RiskRecord, error) {
	findings, err := reader.ReadFindings()
	if err != nil {
		return nil, err
	}
	coverage, err := reader.ReadCoverage()
	if err != nil {
		return nil, err
	}
	churn, err := reader.ReadChurn()
	if err != nil {
		return nil, err
	}

	securityScores, findingRefs := computeSecurity(findings)
	coverageScores := computeCoverage(coverage)
	churnScores := computeChurn(churn)

	components := componentUnion(securityScores, coverageScores, churnScores)
	records := make([]evidence.RiskRecord, 0, len(components))

	for _, component := range components {
		raw := map[string]float64{
			"security": securityScores[component],
			"coverage": coverageScores[component],
			"churn":    churnScores[component],
		}
		factors := map[string]float64{
			"security": raw["security"] * a.Config.Weights.Security,
			"coverage": raw["coverage"] * a.Config.Weights.Coverage,
			"churn":    raw["churn"] * a.Config.Weights.Churn,
		}

		score := factors["security"] + factors["coverage"] + factors["churn"]
		if score > a.Config.MaxTotal {
			score = a.Config.MaxTotal
		}

		present := 0
		for _, value := range raw {
			if value > 0 {
				present++
			}
		}
		confidence := float64(present) / 3.0
		severity := labelForScore(score)

		riskID, err := ids.NextID("rsk")
		if err != nil {
			return nil, err
		}

		refs := findingRefs[component]
		if refs == nil {
			refs = []string{}
		}

		record, err := evidence.NewRiskRecord(evidence.RiskRecord{
			RiskID:       riskID,
			Component:    component,
			Score:        score,
			Band:         a.Config.bandFor(score),
			Confidence:   confidence,
			Severity:     severity,
			Title:        fmt.Sprintf("%s risk (%s)", component, severity),
			Description:  "Risk score derived from findings, coverage gaps, and churn.",
			EvidenceRefs: refs,
			Factors:      factors,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		batch := make([]any, len(records))
		for i, r := range records {
			batch[i] = r
		}
		if _, err := writer.WriteRecords("risks", batch); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("aggregated component risks",
		"components", len(components),
		"records", len(records))
	return records, nil
}

// AggregateRun loads an existing run, scores it with the config at
// configPath (or the defaults when the file is absent), and persists the
// resulting risk records into the same run. The run is resolved against
// the default runs directory.
func AggregateRun(run, configPath string, logger *slog.Logger) ([]evidence.RiskRecord, error) {
	return AggregateRunIn("", run, configPath, logger)
}

// AggregateRunIn is AggregateRun with an explicit runs directory. An empty
// baseDir falls back to the environment override or the home directory.
func AggregateRunIn(baseDir, run, configPath string, logger *slog.Logger) ([]evidence.RiskRecord, error) {
	manager, err := evidence.NewManager(baseDir, logger)
	if err != nil {
		return nil, err
	}
	handle, err := manager.LoadRun(run)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	reader := evidence.NewReader(handle, logger)
	writer := evidence.NewWriter(handle, logger)
	return NewAggregator(cfg, logger).Aggregate(reader, writer, handle.IDs)
}

// computeSecurity sums severity weights per finding file and tracks which
// finding IDs contributed to each component's score.
func computeSecurity(findings []evidence.FindingRecord) (map[string]float64, map[string][]string) {
	scores := map[string]float64{}
	refs := map[string][]string{}
	for _, f := range findings {
		if f.File == "" {
			continue
		}
		weight, ok := severityWeights[strings.ToLower(f.Severity)]
		if !ok {
			weight = 1.0
		}
		scores[f.File] += weight
		if f.EvidenceID != "" {
			refs[f.File] = append(refs[f.File], f.EvidenceID)
		}
	}
	return scores, refs
}

// computeCoverage converts coverage values into gap scores in [0, 1].
// The synthetic __overall__ component never participates; a duplicate
// component keeps its last record's value.
func computeCoverage(records []evidence.CoverageRecord) map[string]float64 {
	scores := map[string]float64{}
	for _, r := range records {
		if r.Component == "" || r.Component == "__overall__" {
			continue
		}
		gap := 1.0 - r.Value
		if gap < 0 {
			gap = 0
		}
		scores[r.Component] = gap
	}
	return scores
}

// computeChurn totals commits plus line deltas per path, then min-max
// normalizes across components so the hottest path scores 1.0. When every
// path churned equally there is no signal and all score 0.
func computeChurn(records []evidence.ChurnRecord) map[string]float64 {
	raw := map[string]float64{}
	for _, r := range records {
		if r.Path == "" {
			continue
		}
		raw[r.Path] += float64(r.Commits) + float64(r.LinesAdded) + float64(r.LinesDeleted)
	}
	if len(raw) == 0 {
		return map[string]float64{}
	}

	minVal, maxVal := 0.0, 0.0
	first := true
	for _, v := range raw {
		if first {
			minVal, maxVal = v, v
			first = false
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	scores := make(map[string]float64, len(raw))
	for component, v := range raw {
		if maxVal == minVal {
			scores[component] = 0
			continue
		}
		scores[component] = (v - minVal) / (maxVal - minVal)
	}
	return scores
}

// componentUnion returns every component seen in any signal, sorted so
// record and ID order is stable run over run.
func componentUnion(maps ...map[string]float64) []string {
	seen := map[string]struct{}{}
	for _, m := range maps {
		for component := range m {
			seen[component] = struct{}{}
		}
	}
	components := make([]string, 0, len(seen))
	for component := range seen {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// labelForScore maps a clamped score to its severity label.
func labelForScore(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 65:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}
