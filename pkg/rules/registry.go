package rules

import (
	"fmt"

	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// Registry holds rules in registration order and guarantees unique IDs.
// Evaluation order is registration order: built-ins first, then customs.
type Registry struct {
	rules []Rule
	index map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Rule)}
}

// DefaultRegistry returns a registry populated with all built-in rules.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, r := range Builtins() {
		reg.rules = append(reg.rules, r)
		reg.index[r.ID()] = r
	}
	return reg
}

// Register adds a rule, failing on an ID collision with any rule already
// present. No rule set with duplicate IDs ever becomes active.
func (reg *Registry) Register(r Rule) error {
	if _, exists := reg.index[r.ID()]; exists {
		return fmt.Errorf("%w: %q is already registered", ErrRuleCollision, r.ID())
	}
	reg.rules = append(reg.rules, r)
	reg.index[r.ID()] = r
	return nil
}

// Get returns the rule with the given ID.
func (reg *Registry) Get(id string) (Rule, bool) {
	r, ok := reg.index[id]
	return r, ok
}

// Rules returns the registered rules in registration order.
func (reg *Registry) Rules() []Rule {
	out := make([]Rule, len(reg.rules))
	copy(out, reg.rules)
	return out
}

// IDs returns the registered rule IDs in registration order.
func (reg *Registry) IDs() []string {
	ids := make([]string, 0, len(reg.rules))
	for _, r := range reg.rules {
		ids = append(ids, r.ID())
	}
	return ids
}

// IDSet returns the registered rule IDs as a set for collision checks.
func (reg *Registry) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(reg.rules))
	for id := range reg.index {
		set[id] = struct{}{}
	}
	return set
}

// EvaluateAll runs every registered rule over the route list, skipping any
// rule whose ID appears in disabled. Risks are returned grouped by rule in
// registration order, preserving route input order within each rule.
func (reg *Registry) EvaluateAll(routes []route.Route, disabled ...string) []risk.Risk {
	skip := make(map[string]struct{}, len(disabled))
	for _, id := range disabled {
		skip[id] = struct{}{}
	}

	var risks []risk.Risk
	for _, r := range reg.rules {
		if _, off := skip[r.ID()]; off {
			continue
		}
		risks = append(risks, r.EvaluateAll(routes)...)
	}
	return risks
}

// LoadCustomFile loads a YAML custom rule file, validates it against the
// rules already registered, and registers the compiled rules. On any error
// the registry is left unchanged: none of the file's rules become active.
func (reg *Registry) LoadCustomFile(path string) error {
	defs, err := LoadFile(path, reg.IDSet())
	if err != nil {
		return err
	}
	return reg.AddDefinitions(defs)
}

// AddDefinitions compiles and registers already-validated definitions.
// The batch is staged so a late failure activates none of them.
func (reg *Registry) AddDefinitions(defs []Definition) error {
	staged := make([]Rule, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for i := range defs {
		r, err := Compile(defs[i])
		if err != nil {
			return err
		}
		if _, exists := reg.index[r.ID()]; exists {
			return fmt.Errorf("%w: %q is already registered", ErrRuleCollision, r.ID())
		}
		if _, dup := seen[r.ID()]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID())
		}
		seen[r.ID()] = struct{}{}
		staged = append(staged, r)
	}
	for _, r := range staged {
		reg.rules = append(reg.rules, r)
		reg.index[r.ID()] = r
	}
	return nil
}
