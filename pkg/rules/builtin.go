package rules

// Builtins returns the full built-in rule catalogue in registration
// order: security first, then performance, then reliability.
func Builtins() []Rule {
	var all []Rule
	all = append(all, securityRules()...)
	all = append(all, performanceRules()...)
	all = append(all, reliabilityRules()...)
	return all
}
