// Package risk defines the risk model shared by the rule engine and the
// aggregation pipeline: categories, severities, and the Risk finding itself.
package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Risk is a single issue detected by a rule against a route.
// Route is rendered as "METHOD path"; aggregate rules that inspect the whole
// route list leave it empty.
type Risk struct {
	Category       Category       `json:"category" yaml:"category"`
	Severity       Severity       `json:"severity" yaml:"severity"`
	Route          string         `json:"route,omitempty" yaml:"route,omitempty"`
	Title          string         `json:"title" yaml:"title"`
	Description    string         `json:"description" yaml:"description"`
	Recommendation string         `json:"recommendation" yaml:"recommendation"`
	Source         string         `json:"source" yaml:"source"`
	CWEID          string         `json:"cwe_id,omitempty" yaml:"cwe_id,omitempty"`
	OWASPTop10     string         `json:"owasp_top_10,omitempty" yaml:"owasp_top_10,omitempty"`
	References     []string       `json:"references,omitempty" yaml:"references,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Score returns the severity ordinal used for sorting risks.
func (r Risk) Score() int {
	return r.Severity.Score()
}

// Fingerprint returns a stable hash of the rule and route identity.
// The same rule firing on the same endpoint across runs yields the same
// fingerprint, so consumers can dedup or suppress recurring risks.
func (r Risk) Fingerprint() string {
	h := murmur3.New64()
	h.Write([]byte(r.Source))
	h.Write([]byte{0})
	h.Write([]byte(r.Route))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Prioritize orders risks by descending severity, ranking admin routes
// ahead of others within the same severity. The sort is stable, so risks
// of equal priority keep their evaluation order.
func Prioritize(risks []Risk) {
	sort.SliceStable(risks, func(i, j int) bool {
		a, b := risks[i], risks[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		aAdmin := strings.Contains(a.Route, "admin")
		bAdmin := strings.Contains(b.Route, "admin")
		return aAdmin && !bAdmin
	})
}
