package evidence

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/apirisk/apirisk/pkg/jsonutil"
)

// maxLineBytes bounds a single JSONL record. Records carrying large
// metadata blobs still fit comfortably under 1 MiB.
const maxLineBytes = 1 << 20

// Reader loads typed records back out of a run's evidence files. Missing
// evidence files read as empty: a run that never produced churn data is
// not an error, it is an absent signal.
type Reader struct {
	evidenceDir string
	logger      *slog.Logger
}

// NewReader returns a reader over the given run's evidence directory.
func NewReader(handle *Handle, logger *slog.Logger) *Reader {
	return &Reader{evidenceDir: handle.EvidenceDir, logger: orDefault(logger)}
}

// FromRunPath returns a reader for a run directory without loading its
// manifest.
func FromRunPath(runPath string, logger *slog.Logger) *Reader {
	return &Reader{
		evidenceDir: filepath.Join(runPath, "evidence"),
		logger:      orDefault(logger),
	}
}

// ReadFindings merges static-analysis findings from findings.jsonl and
// quality.jsonl, in that order.
func (r *Reader) ReadFindings() ([]FindingRecord, error) {
	findings, err := readRecords[FindingRecord](r, "findings")
	if err != nil {
		return nil, err
	}
	quality, err := readRecords[FindingRecord](r, "quality")
	if err != nil {
		return nil, err
	}
	return append(findings, quality...), nil
}

// ReadCoverage returns the run's coverage component records.
func (r *Reader) ReadCoverage() ([]CoverageRecord, error) {
	return readRecords[CoverageRecord](r, "coverage")
}

// ReadChurn returns the run's git churn records.
func (r *Reader) ReadChurn() ([]ChurnRecord, error) {
	return readRecords[ChurnRecord](r, "churn")
}

// ReadRisks returns the run's aggregated risk records.
func (r *Reader) ReadRisks() ([]RiskRecord, error) {
	return readRecords[RiskRecord](r, "risks")
}

// ReadRecommendations returns the run's recommendation records.
func (r *Reader) ReadRecommendations() ([]RecommendationRecord, error) {
	return readRecords[RecommendationRecord](r, "recommendations")
}

// ReadAPIRoutes returns the run's discovered API route records.
func (r *Reader) ReadAPIRoutes() ([]ApiRecord, error) {
	return readRecords[ApiRecord](r, "api")
}

// ReadTests returns the run's test result records.
func (r *Reader) ReadTests() ([]TestRecord, error) {
	return readRecords[TestRecord](r, "tests")
}

// readRecords scans <evidence>/<name>.jsonl line by line. Blank lines are
// ignored and malformed lines are skipped rather than failing the read;
// a partial evidence file from a crashed collector should not block
// aggregation of everything else.
func readRecords[T any](r *Reader, name string) ([]T, error) {
	path := filepath.Join(r.evidenceDir, name+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("evidence: open %s: %w", path, err)
	}
	defer f.Close()

	records := []T{}
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record T
		if err := jsonutil.Unmarshal([]byte(line), &record); err != nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("evidence: scan %s: %w", path, err)
	}

	if skipped > 0 {
		r.logger.Debug("skipped malformed evidence lines",
			"count", skipped,
			"path", path)
	}
	return records, nil
}
