package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ruleFile is the top-level document of a custom rules file:
//
//	rules:
//	  - rule_id: "CUSTOM-001"
//	    ...
type ruleFile struct {
	Rules []Definition `yaml:"rules"`
}

// LoadFile reads and validates custom rule definitions from a YAML file.
// existingIDs holds the IDs already taken (built-ins plus any previously
// registered customs). Unknown YAML keys, schema violations, bad regexes,
// and ID collisions all fail the whole load; no partial rule sets.
func LoadFile(path string, existingIDs map[string]struct{}) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRulesNotFound, path)
		}
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}

	var doc ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: missing top-level %q key", ErrInvalidRule, path, "rules")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, path, err)
	}
	if doc.Rules == nil {
		return nil, fmt.Errorf("%w: %s: missing top-level %q key", ErrInvalidRule, path, "rules")
	}

	source := fmt.Sprintf("custom rules file %q", filepath.Base(path))
	if err := validateDefinitions(doc.Rules, existingIDs, source); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

// Merge combines custom rules from an optional file and inline
// definitions, file rules first. A rule_id duplicated across the two
// sources fails the merge; both sources are checked against existingIDs.
func Merge(filePath string, inline []Definition, existingIDs map[string]struct{}) ([]Definition, error) {
	var merged []Definition
	seen := make(map[string]struct{})

	if filePath != "" {
		fileDefs, err := LoadFile(filePath, existingIDs)
		if err != nil {
			return nil, err
		}
		for _, d := range fileDefs {
			seen[d.RuleID] = struct{}{}
			merged = append(merged, d)
		}
	}

	if len(inline) > 0 {
		if err := validateDefinitions(inline, existingIDs, "inline custom rules"); err != nil {
			return nil, err
		}
		for _, d := range inline {
			if _, dup := seen[d.RuleID]; dup {
				return nil, fmt.Errorf("%w: %q appears in both the custom rules file and inline custom rules; use unique rule_id values across all sources", ErrDuplicateRule, d.RuleID)
			}
			merged = append(merged, d)
		}
	}
	return merged, nil
}

func validateDefinitions(defs []Definition, existingIDs map[string]struct{}, source string) error {
	seen := make(map[string]struct{}, len(defs))
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return err
		}
		id := defs[i].RuleID
		if _, taken := existingIDs[id]; taken {
			return fmt.Errorf("%w: custom rule %q in %s collides with a built-in rule ID; use a unique ID (e.g. %q)", ErrRuleCollision, id, source, "CUSTOM-001")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateRule, id, source)
		}
		seen[id] = struct{}{}
	}
	return nil
}
