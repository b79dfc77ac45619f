package evidence

import (
	"fmt"
	"time"
)

// ISO8601 is the timestamp layout used by every evidence record.
const ISO8601 = "2006-01-02T15:04:05Z"

// UTCNow returns the current UTC time in ISO8601 form.
func UTCNow() string {
	return time.Now().UTC().Format(ISO8601)
}

// The record field sets below are a serialization contract: field names
// never change across versions, and consumers key on them.

// FindingRecord is a normalized lint/security/dependency finding.
type FindingRecord struct {
	EvidenceID  string         `json:"evidence_id"`
	Tool        string         `json:"tool"`
	Severity    string         `json:"severity"`
	Code        string         `json:"code,omitempty"`
	Message     string         `json:"message"`
	File        string         `json:"file,omitempty"`
	Line        int            `json:"line,omitzero"`
	Column      int            `json:"column,omitzero"`
	Tags        []string       `json:"tags"`
	Confidence  float64        `json:"confidence,omitzero"`
	CollectedAt string         `json:"collected_at"`
	Metadata    map[string]any `json:"metadata"`
}

// CoverageRecord is a coverage metric for one component.
type CoverageRecord struct {
	CoverageID        string         `json:"coverage_id"`
	Type              string         `json:"type"`
	Component         string         `json:"component"`
	Value             float64        `json:"value"`
	TotalStatements   int            `json:"total_statements,omitzero"`
	CoveredStatements int            `json:"covered_statements,omitzero"`
	Sources           []string       `json:"sources"`
	LinkedCUJs        []string       `json:"linked_cujs"`
	CollectedAt       string         `json:"collected_at"`
	Metadata          map[string]any `json:"metadata"`
}

// ChurnRecord holds git churn statistics for a file.
type ChurnRecord struct {
	EvidenceID   string         `json:"evidence_id"`
	Path         string         `json:"path"`
	Window       string         `json:"window"`
	Commits      int            `json:"commits"`
	LinesAdded   int            `json:"lines_added"`
	LinesDeleted int            `json:"lines_deleted"`
	Contributors int            `json:"contributors"`
	LastCommitAt string         `json:"last_commit_at,omitempty"`
	Metadata     map[string]any `json:"metadata"`
}

// ApiRecord describes one entry of the discovered API surface.
type ApiRecord struct {
	ApiID        string         `json:"api_id"`
	Method       string         `json:"method"`
	Path         string         `json:"path"`
	AuthRequired bool           `json:"auth_required"`
	Tags         []string       `json:"tags"`
	Source       string         `json:"source"`
	Confidence   float64        `json:"confidence,omitzero"`
	EvidenceRefs []string       `json:"evidence_refs"`
	Metadata     map[string]any `json:"metadata"`
}

// TestRecord is an inventory entry for one test case.
type TestRecord struct {
	TestID       string         `json:"test_id"`
	Kind         string         `json:"kind"`
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	LastRun      string         `json:"last_run,omitempty"`
	EvidenceRefs []string       `json:"evidence_refs"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
}

// RiskRecord is a computed risk score for one component.
type RiskRecord struct {
	RiskID          string             `json:"risk_id"`
	Component       string             `json:"component"`
	Score           float64            `json:"score"`
	Band            string             `json:"band"`
	Confidence      float64            `json:"confidence"`
	Severity        string             `json:"severity"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	EvidenceRefs    []string           `json:"evidence_refs"`
	Factors         map[string]float64 `json:"factors"`
	Recommendations []string           `json:"recommendations"`
	CreatedAt       string             `json:"created_at"`
	Metadata        map[string]any     `json:"metadata"`
}

// NewRiskRecord validates score and confidence ranges at construction.
// Out-of-range values are rejected here, never coerced inside scoring.
func NewRiskRecord(r RiskRecord) (RiskRecord, error) {
	if r.Score < 0 || r.Score > 100 {
		return RiskRecord{}, fmt.Errorf("%w: got %v", ErrScoreOutOfRange, r.Score)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return RiskRecord{}, fmt.Errorf("%w: got %v", ErrConfidenceOutOfRange, r.Confidence)
	}
	if r.CreatedAt == "" {
		r.CreatedAt = UTCNow()
	}
	return r, nil
}

// RecommendationRecord is a suggested action derived from risk analysis.
type RecommendationRecord struct {
	RecommendationID string         `json:"recommendation_id"`
	Component        string         `json:"component"`
	Priority         string         `json:"priority"`
	Summary          string         `json:"summary"`
	Details          string         `json:"details"`
	EvidenceRefs     []string       `json:"evidence_refs"`
	CreatedAt        string         `json:"created_at"`
	Metadata         map[string]any `json:"metadata"`
}

// TargetMetadata describes the analyzed target repository.
type TargetMetadata struct {
	Name string         `json:"name"`
	Path string         `json:"path"`
	Git  map[string]any `json:"git"`
}

// ToolStatus records the execution outcome of a single collector.
// ExitCode is a pointer so "never executed" and "exited 0" stay distinct.
type ToolStatus struct {
	Version  string `json:"version,omitempty"`
	Executed bool   `json:"executed"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Manifest is the top-level mutable descriptor of a run. It is persisted
// after every successful evidence write; a crash between a file append and
// the manifest flush leaves the counts behind the file until the next
// successful write repairs them.
type Manifest struct {
	RunID         string                `json:"run_id"`
	CreatedAt     string                `json:"created_at"`
	Target        TargetMetadata        `json:"target"`
	Tools         map[string]ToolStatus `json:"tools"`
	Counts        map[string]int        `json:"counts"`
	EvidenceFiles map[string]string     `json:"evidence_files"`
	Diagnostics   []string              `json:"diagnostics"`
}

// NewManifest returns a manifest with zeroed default counters.
func NewManifest(runID string, target TargetMetadata) *Manifest {
	m := &Manifest{
		RunID:         runID,
		CreatedAt:     UTCNow(),
		Target:        target,
		Tools:         map[string]ToolStatus{},
		Counts:        map[string]int{},
		EvidenceFiles: map[string]string{},
		Diagnostics:   []string{},
	}
	m.ensureDefaults()
	return m
}

func (m *Manifest) ensureDefaults() {
	if m.Tools == nil {
		m.Tools = map[string]ToolStatus{}
	}
	if m.Counts == nil {
		m.Counts = map[string]int{}
	}
	if m.EvidenceFiles == nil {
		m.EvidenceFiles = map[string]string{}
	}
	for _, key := range []string{"findings", "risks", "tests", "coverage_components"} {
		if _, ok := m.Counts[key]; !ok {
			m.Counts[key] = 0
		}
	}
}

// RegisterTool records the execution status of a collector.
func (m *Manifest) RegisterTool(name string, status ToolStatus) {
	m.Tools[name] = status
}

// IncrementCount adds amount to the named counter.
func (m *Manifest) IncrementCount(key string, amount int) {
	m.Counts[key] += amount
}

// RegisterFile maps a record type to its evidence file, relative to the
// run directory.
func (m *Manifest) RegisterFile(recordType, relativePath string) {
	m.EvidenceFiles[recordType] = relativePath
}

// AddDiagnostic appends a free-text note to the ordered diagnostics log.
func (m *Manifest) AddDiagnostic(message string) {
	m.Diagnostics = append(m.Diagnostics, message)
}
