package evidence

import "errors"

// Sentinel errors for run lifecycle and record validation.
// Callers should use errors.Is() to check for these.
var (
	// ErrManifestNotFound indicates a run directory without a manifest.json.
	ErrManifestNotFound = errors.New("evidence: manifest.json not found")

	// ErrInvalidRunID indicates a run identifier that does not begin with
	// an eight-digit date stamp.
	ErrInvalidRunID = errors.New("evidence: run ID must begin with YYYYMMDD")

	// ErrInvalidPrefix indicates an empty or non-alphabetic ID prefix.
	ErrInvalidPrefix = errors.New("evidence: prefix must be a non-empty alphabetic string")

	// ErrScoreOutOfRange indicates a risk score outside [0, 100].
	ErrScoreOutOfRange = errors.New("evidence: score must be between 0 and 100")

	// ErrConfidenceOutOfRange indicates a confidence outside [0, 1].
	ErrConfidenceOutOfRange = errors.New("evidence: confidence must be between 0 and 1")
)
