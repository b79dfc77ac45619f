package risk

import "errors"

// Sentinel errors for risk model validation.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidSeverity indicates a severity outside the fixed enum.
	ErrInvalidSeverity = errors.New("risk: invalid severity")

	// ErrInvalidCategory indicates a category outside the fixed enum.
	ErrInvalidCategory = errors.New("risk: invalid category")
)
