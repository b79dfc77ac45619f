package scoring

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/apirisk/apirisk/pkg/evidence"
)

// Recommender turns aggregated risk records into prioritized follow-up
// actions.
type Recommender struct {
	logger *slog.Logger
}

// NewRecommender returns a recommender.
func NewRecommender(logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{logger: logger}
}

// Generate emits one recommendation per risk, persists the batch under
// the "recommendations" record type, and returns it. Priorities reuse the
// score thresholds that label risk severity.
func (r *Recommender) Generate(risks []evidence.RiskRecord, writer RecordWriter, ids *evidence.IDGenerator) ([]evidence.RecommendationRecord, error) {
	recommendations := make([]evidence.RecommendationRecord, 0, len(risks))

	for _, risk := range risks {
		priority := labelForScore(risk.Score)
		recID, err := ids.NextID("rec")
		if err != nil {
			return nil, err
		}

		refs := risk.EvidenceRefs
		if refs == nil {
			refs = []string{}
		}

		recommendations = append(recommendations, evidence.RecommendationRecord{
			RecommendationID: recID,
			Component:        risk.Component,
			Priority:         priority,
			Summary:          fmt.Sprintf("Focus on %s (%s risk)", risk.Component, priority),
			Details:          buildDetails(risk),
			EvidenceRefs:     refs,
			CreatedAt:        evidence.UTCNow(),
			Metadata:         map[string]any{"score": risk.Score, "band": risk.Band},
		})
	}

	if len(recommendations) > 0 {
		batch := make([]any, len(recommendations))
		for i, rec := range recommendations {
			batch[i] = rec
		}
		if _, err := writer.WriteRecords("recommendations", batch); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("generated recommendations", "count", len(recommendations))
	return recommendations, nil
}

// buildDetails renders the factor breakdown plus any actions the factor
// values call for. Factor names are sorted so the text is stable.
func buildDetails(risk evidence.RiskRecord) string {
	names := make([]string, 0, len(risk.Factors))
	for name := range risk.Factors {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, risk.Factors[name]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Risk score %.1f (band %s). Factors: %s", risk.Score, risk.Band, strings.Join(parts, ", "))

	actions := actionsFor(risk)
	if len(actions) > 0 {
		b.WriteString("\n\nRecommended actions:\n")
		for _, action := range actions {
			fmt.Fprintf(&b, "  - %s\n", action)
		}
	}
	return strings.TrimSpace(b.String())
}

// RecommendRunIn loads the run under baseDir and generates
// recommendations for the given risk records, persisting the batch into
// the run's evidence store. An empty baseDir falls back to the
// environment override or the home directory.
func RecommendRunIn(baseDir, run string, risks []evidence.RiskRecord, logger *slog.Logger) ([]evidence.RecommendationRecord, error) {
	manager, err := evidence.NewManager(baseDir, logger)
	if err != nil {
		return nil, err
	}
	handle, err := manager.LoadRun(run)
	if err != nil {
		return nil, err
	}
	writer := evidence.NewWriter(handle, logger)
	return NewRecommender(logger).Generate(risks, writer, handle.IDs)
}

func actionsFor(risk evidence.RiskRecord) []string {
	var actions []string
	if risk.Factors["security"] > 50 {
		actions = append(actions, "Review the security findings attributed to "+risk.Component)
	}
	if risk.Factors["coverage"] > 0 {
		actions = append(actions, "Raise test coverage for "+risk.Component)
	}
	switch {
	case risk.Score >= 80:
		actions = append(actions, "Address this critical risk immediately")
	case risk.Score >= 65:
		actions = append(actions, "Schedule a fix in the current sprint")
	}
	return actions
}
