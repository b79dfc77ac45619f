package evidence

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// IDGenerator mints evidence identifiers scoped to a single run.
//
// IDs follow `PREFIX-YYYYMMDD-NNNN` where the date stamp is taken from the
// run identifier and NNNN is a per-prefix sequence starting at 0001. State
// is owned by the run handle and never persisted: reconstructing a
// generator for an existing run restarts every counter.
type IDGenerator struct {
	mu        sync.Mutex
	dateStamp string
	counters  map[string]int
}

// NewIDGenerator derives the date stamp from runID, e.g. "20251024" from
// "20251024_193012Z".
func NewIDGenerator(runID string) (*IDGenerator, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: empty run ID", ErrInvalidRunID)
	}
	stamp, _, _ := strings.Cut(runID, "_")
	if len(stamp) != 8 || !allDigits(stamp) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return &IDGenerator{dateStamp: stamp, counters: map[string]int{}}, nil
}

// NextID returns the next sequential ID for the given prefix. The prefix
// is uppercased, so "fnd" and "FND" share a counter.
func (g *IDGenerator) NextID(prefix string) (string, error) {
	if prefix == "" || !allLetters(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.ToUpper(prefix)
	g.counters[key]++
	return fmt.Sprintf("%s-%s-%04d", key, g.dateStamp, g.counters[key]), nil
}

// Counters returns a copy of the per-prefix counters for inspection.
func (g *IDGenerator) Counters() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]int, len(g.counters))
	for k, v := range g.counters {
		out[k] = v
	}
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
