package risk

import "fmt"

// Severity represents the severity level of a detected risk.
// All values are lowercase strings matching the evidence file contract.
type Severity string

const (
	// SeverityCritical represents risks requiring immediate attention
	// (unauthenticated admin surfaces, exposed credentials).
	SeverityCritical Severity = "critical"

	// SeverityHigh represents significant risks requiring a prompt fix.
	SeverityHigh Severity = "high"

	// SeverityMedium represents moderate risks to schedule.
	SeverityMedium Severity = "medium"

	// SeverityLow represents limited-impact hygiene issues.
	SeverityLow Severity = "low"
)

// Severities lists all valid severity values in descending order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=4, High=3, Medium=2, Low=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts a string into a Severity, failing on values
// outside the fixed enum rather than coercing them to a default.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(v)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, v)
	}
	return s, nil
}
