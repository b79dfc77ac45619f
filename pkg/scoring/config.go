// Package scoring aggregates evidence signals into per-component risk
// records: a weighted sum of security findings, coverage gaps, and git
// churn, clamped, banded, and persisted back through the evidence store.
package scoring

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a scoring config file is malformed.
var ErrInvalidConfig = errors.New("scoring: invalid config")

// Weights holds the per-factor multipliers applied to raw sub-scores.
type Weights struct {
	Security float64 `yaml:"security"`
	Coverage float64 `yaml:"coverage"`
	Churn    float64 `yaml:"churn"`
}

// Band is a named risk tier with an inclusive minimum score.
type Band struct {
	Name     string  `yaml:"name"`
	MinScore float64 `yaml:"min_score"`
}

// Config controls the aggregation formula.
type Config struct {
	Weights  Weights
	Bands    []Band
	MaxTotal float64
}

// DefaultConfig returns the built-in scoring profile.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{Security: 3.0, Coverage: 2.0, Churn: 2.0},
		Bands: []Band{
			{Name: "P0", MinScore: 80},
			{Name: "P1", MinScore: 65},
			{Name: "P2", MinScore: 50},
			{Name: "P3", MinScore: 0},
		},
		MaxTotal: 100.0,
	}
}

// fileConfig mirrors the on-disk YAML layout:
//
//	scoring:
//	  weights: {security: 3.0, coverage: 2.0, churn: 2.0}
//	  caps: {max_total: 100}
//	prioritization:
//	  bands: [{name: P0, min_score: 80}, ...]
type fileConfig struct {
	Scoring struct {
		Weights map[string]float64 `yaml:"weights"`
		Caps    struct {
			MaxTotal *float64 `yaml:"max_total"`
		} `yaml:"caps"`
	} `yaml:"scoring"`
	Prioritization struct {
		Bands []Band `yaml:"bands"`
	} `yaml:"prioritization"`
}

// LoadConfig reads a scoring config, overlaying any values present onto
// the defaults. A missing file is not an error; it selects the defaults
// wholesale. Weight keys that name no known factor are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("scoring: read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	var doc fileConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, value := range doc.Scoring.Weights {
		switch name {
		case "security":
			cfg.Weights.Security = value
		case "coverage":
			cfg.Weights.Coverage = value
		case "churn":
			cfg.Weights.Churn = value
		}
	}
	if doc.Scoring.Caps.MaxTotal != nil {
		cfg.MaxTotal = *doc.Scoring.Caps.MaxTotal
	}
	if len(doc.Prioritization.Bands) > 0 {
		cfg.Bands = doc.Prioritization.Bands
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxTotal <= 0 {
		return fmt.Errorf("%w: max_total must be positive, got %v", ErrInvalidConfig, c.MaxTotal)
	}
	if c.Weights.Security < 0 || c.Weights.Coverage < 0 || c.Weights.Churn < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}
	if len(c.Bands) == 0 {
		return fmt.Errorf("%w: at least one band is required", ErrInvalidConfig)
	}
	for _, b := range c.Bands {
		if b.Name == "" {
			return fmt.Errorf("%w: band with min_score %v has no name", ErrInvalidConfig, b.MinScore)
		}
	}
	return nil
}

// bandFor resolves the highest-threshold band whose minimum the score
// meets, falling back to the lowest-threshold band.
func (c Config) bandFor(score float64) string {
	ordered := make([]Band, len(c.Bands))
	copy(ordered, c.Bands)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MinScore > ordered[j].MinScore
	})
	for _, band := range ordered {
		if score >= band.MinScore {
			return band.Name
		}
	}
	return ordered[len(ordered)-1].Name
}
