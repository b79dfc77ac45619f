package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apirisk/apirisk/pkg/regexcache"
	"github.com/apirisk/apirisk/pkg/risk"
	"github.com/apirisk/apirisk/pkg/route"
)

// The declarative rule DSL. Each condition kind is a closed struct with
// explicit fields; unknown keys are rejected at load time. Within a Match
// block every present condition must hold (AND), and an absent condition
// is vacuously true, so an empty match block matches every route.

// PathCondition constrains the route path.
type PathCondition struct {
	Equals      *string  `yaml:"equals,omitempty" json:"equals,omitempty"`
	Contains    *string  `yaml:"contains,omitempty" json:"contains,omitempty"`
	Regex       *string  `yaml:"regex,omitempty" json:"regex,omitempty"`
	StartsWith  *string  `yaml:"starts_with,omitempty" json:"starts_with,omitempty"`
	NotContains []string `yaml:"not_contains,omitempty" json:"not_contains,omitempty"`
}

// MethodCondition constrains the HTTP method. An empty (non-nil) In list
// matches no method at all.
type MethodCondition struct {
	Equals *string  `yaml:"equals,omitempty" json:"equals,omitempty"`
	In     []string `yaml:"in,omitempty" json:"in,omitempty"`
}

// BoolCondition constrains a boolean route attribute such as
// auth_required or the deprecated flag.
type BoolCondition struct {
	Equals *bool `yaml:"equals,omitempty" json:"equals,omitempty"`
}

// TagsCondition constrains the route tag list.
type TagsCondition struct {
	Contains *string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Empty    *bool   `yaml:"empty,omitempty" json:"empty,omitempty"`
}

// Match is a condition group over route attributes.
type Match struct {
	Path         *PathCondition   `yaml:"path,omitempty" json:"path,omitempty"`
	Method       *MethodCondition `yaml:"method,omitempty" json:"method,omitempty"`
	AuthRequired *BoolCondition   `yaml:"auth_required,omitempty" json:"auth_required,omitempty"`
	Tags         *TagsCondition   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Deprecated   *BoolCondition   `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
}

// Escalation overrides the rule severity when its condition matches.
// Entries are checked in document order and the first match wins.
type Escalation struct {
	Condition *Match        `yaml:"condition" json:"condition"`
	Severity  risk.Severity `yaml:"severity" json:"severity"`
}

// Definition is the schema for one custom rule.
type Definition struct {
	RuleID             string        `yaml:"rule_id" json:"rule_id"`
	Category           risk.Category `yaml:"category" json:"category"`
	Severity           risk.Severity `yaml:"severity" json:"severity"`
	Title              string        `yaml:"title" json:"title"`
	Description        string        `yaml:"description" json:"description"`
	Recommendation     string        `yaml:"recommendation" json:"recommendation"`
	Match              *Match        `yaml:"match" json:"match"`
	SeverityEscalation []Escalation  `yaml:"severity_escalation,omitempty" json:"severity_escalation,omitempty"`
	CWEID              string        `yaml:"cwe_id,omitempty" json:"cwe_id,omitempty"`
	OWASPTop10         string        `yaml:"owasp_top_10,omitempty" json:"owasp_top_10,omitempty"`
	References         []string      `yaml:"references,omitempty" json:"references,omitempty"`
}

var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// Validate checks a definition against the rule schema. All violations
// are configuration errors detected before any route is evaluated.
func (d Definition) Validate() error {
	if d.RuleID == "" {
		return fmt.Errorf("%w: rule_id is required", ErrInvalidRule)
	}
	if !ruleIDPattern.MatchString(d.RuleID) {
		return fmt.Errorf("%w: rule_id %q must be alphanumeric with dashes", ErrInvalidRule, d.RuleID)
	}
	if !d.Category.IsValid() {
		return fmt.Errorf("%w: rule %q: unknown category %q", ErrInvalidRule, d.RuleID, d.Category)
	}
	if !d.Severity.IsValid() {
		return fmt.Errorf("%w: rule %q: unknown severity %q", ErrInvalidRule, d.RuleID, d.Severity)
	}
	for field, value := range map[string]string{
		"title":          d.Title,
		"description":    d.Description,
		"recommendation": d.Recommendation,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: rule %q: %s is required", ErrInvalidRule, d.RuleID, field)
		}
	}
	if d.Match == nil {
		return fmt.Errorf("%w: rule %q: match block is required", ErrInvalidRule, d.RuleID)
	}
	if err := d.Match.validate(); err != nil {
		return fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, d.RuleID, err)
	}
	for i, esc := range d.SeverityEscalation {
		if esc.Condition == nil {
			return fmt.Errorf("%w: rule %q: severity_escalation[%d] has no condition", ErrInvalidRule, d.RuleID, i)
		}
		if !esc.Severity.IsValid() {
			return fmt.Errorf("%w: rule %q: severity_escalation[%d] has unknown severity %q", ErrInvalidRule, d.RuleID, i, esc.Severity)
		}
		if err := esc.Condition.validate(); err != nil {
			return fmt.Errorf("%w: rule %q: severity_escalation[%d]: %v", ErrInvalidRule, d.RuleID, i, err)
		}
	}
	return nil
}

func (m *Match) validate() error {
	if m.Path == nil || m.Path.Regex == nil {
		return nil
	}
	if _, err := regexcache.Get(*m.Path.Regex); err != nil {
		return fmt.Errorf("invalid regex pattern %q: %v", *m.Path.Regex, err)
	}
	return nil
}

// yamlRule is a Rule compiled from a Definition. Path regexes are
// compiled once here, never at evaluation time.
type yamlRule struct {
	meta
	defn      Definition
	pathRegex *regexp.Regexp
	escRegex  []*regexp.Regexp
}

var _ Rule = (*yamlRule)(nil)

// Compile validates a definition and wraps it into the shared rule
// contract. A failed compile activates nothing.
func Compile(d Definition) (Rule, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	r := &yamlRule{
		meta: meta{
			id:          d.RuleID,
			category:    d.Category,
			severity:    d.Severity,
			title:       d.Title,
			description: d.Description,
		},
		defn:     d,
		escRegex: make([]*regexp.Regexp, len(d.SeverityEscalation)),
	}
	if d.Match.Path != nil && d.Match.Path.Regex != nil {
		r.pathRegex = regexcache.MustGet(*d.Match.Path.Regex)
	}
	for i, esc := range d.SeverityEscalation {
		if esc.Condition.Path != nil && esc.Condition.Path.Regex != nil {
			r.escRegex[i] = regexcache.MustGet(*esc.Condition.Path.Regex)
		}
	}
	return r, nil
}

func (r *yamlRule) Evaluate(rt route.Route) *risk.Risk {
	if !matchRoute(rt, r.defn.Match, r.pathRegex) {
		return nil
	}
	return &risk.Risk{
		Category:       r.category,
		Severity:       r.severityFor(rt),
		Route:          rt.Identity(),
		Title:          r.defn.Title,
		Description:    r.defn.Description,
		Recommendation: r.defn.Recommendation,
		Source:         r.id,
		CWEID:          r.defn.CWEID,
		OWASPTop10:     r.defn.OWASPTop10,
		References:     append([]string(nil), r.defn.References...),
	}
}

func (r *yamlRule) EvaluateAll(routes []route.Route) []risk.Risk {
	var risks []risk.Risk
	for _, rt := range routes {
		if rk := r.Evaluate(rt); rk != nil {
			risks = append(risks, *rk)
		}
	}
	return risks
}

// severityFor resolves escalations in document order, first match wins.
func (r *yamlRule) severityFor(rt route.Route) risk.Severity {
	for i, esc := range r.defn.SeverityEscalation {
		if matchRoute(rt, esc.Condition, r.escRegex[i]) {
			return esc.Severity
		}
	}
	return r.defn.Severity
}

func matchRoute(rt route.Route, m *Match, pathRegex *regexp.Regexp) bool {
	if m == nil {
		return true
	}
	if m.Path != nil && !matchPath(rt.Path, m.Path, pathRegex) {
		return false
	}
	if m.Method != nil && !matchMethod(rt.Method, m.Method) {
		return false
	}
	if m.AuthRequired != nil && m.AuthRequired.Equals != nil && rt.AuthRequired != *m.AuthRequired.Equals {
		return false
	}
	if m.Tags != nil && !matchTags(rt.Tags, m.Tags) {
		return false
	}
	if m.Deprecated != nil && m.Deprecated.Equals != nil && rt.Deprecated() != *m.Deprecated.Equals {
		return false
	}
	return true
}

func matchPath(path string, c *PathCondition, rx *regexp.Regexp) bool {
	if c.Equals != nil && path != *c.Equals {
		return false
	}
	if c.Contains != nil && !strings.Contains(path, *c.Contains) {
		return false
	}
	if c.StartsWith != nil && !strings.HasPrefix(path, *c.StartsWith) {
		return false
	}
	for _, substr := range c.NotContains {
		if strings.Contains(path, substr) {
			return false
		}
	}
	if c.Regex != nil {
		if rx == nil {
			rx = regexcache.MustGet(*c.Regex)
		}
		if !rx.MatchString(path) {
			return false
		}
	}
	return true
}

func matchMethod(method string, c *MethodCondition) bool {
	if c.Equals != nil && method != *c.Equals {
		return false
	}
	if c.In != nil {
		for _, m := range c.In {
			if method == m {
				return true
			}
		}
		return false
	}
	return true
}

func matchTags(tags []string, c *TagsCondition) bool {
	if c.Contains != nil {
		found := false
		for _, tag := range tags {
			if tag == *c.Contains {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.Empty != nil {
		if *c.Empty && len(tags) > 0 {
			return false
		}
		if !*c.Empty && len(tags) == 0 {
			return false
		}
	}
	return true
}
