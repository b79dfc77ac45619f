package risk

import "fmt"

// Category classifies which concern a risk relates to.
type Category string

const (
	// CategorySecurity covers authentication, authorization, and data exposure.
	CategorySecurity Category = "security"

	// CategoryPerformance covers pagination, caching, and query-cost issues.
	CategoryPerformance Category = "performance"

	// CategoryReliability covers deprecation, error contracts, and operability.
	CategoryReliability Category = "reliability"
)

// Categories lists all valid category values.
var Categories = []Category{CategorySecurity, CategoryPerformance, CategoryReliability}

// IsValid reports whether c is a recognized category.
func (c Category) IsValid() bool {
	switch c {
	case CategorySecurity, CategoryPerformance, CategoryReliability:
		return true
	}
	return false
}

// String returns the category as a string.
func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a string into a Category, failing on unknown values.
func ParseCategory(v string) (Category, error) {
	c := Category(v)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, v)
	}
	return c, nil
}
