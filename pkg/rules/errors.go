package rules

import "errors"

// Sentinel errors for rule loading and validation.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidRule indicates a schema violation in a rule definition:
	// missing required field, unknown enum value, or malformed regex.
	ErrInvalidRule = errors.New("rules: invalid rule definition")

	// ErrRuleCollision indicates a custom rule ID that collides with a
	// built-in or previously registered rule.
	ErrRuleCollision = errors.New("rules: rule ID collision")

	// ErrDuplicateRule indicates the same rule ID appears twice within
	// one load batch.
	ErrDuplicateRule = errors.New("rules: duplicate rule ID")

	// ErrRulesNotFound indicates a missing custom rules file.
	ErrRulesNotFound = errors.New("rules: custom rules file not found")
)
