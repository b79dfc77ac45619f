package evidence

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apirisk/apirisk/pkg/jsonutil"
)

// CountMapping maps a record type to the manifest counter it advances.
// Record types absent from this map still get their evidence file
// registered, but no counter moves.
var CountMapping = map[string]string{
	"quality":  "findings",
	"findings": "findings",
	"risks":    "risks",
	"coverage": "coverage_components",
	"tests":    "tests",
}

// Writer appends typed records to a run's JSONL evidence files and keeps
// the manifest's file registry and counters in sync.
type Writer struct {
	handle *Handle
	logger *slog.Logger
}

// NewWriter returns a writer bound to the given run.
func NewWriter(handle *Handle, logger *slog.Logger) *Writer {
	return &Writer{handle: handle, logger: orDefault(logger)}
}

// WriteRecords appends records to <evidence>/<recordType>.jsonl, one JSON
// object per line, and updates the manifest. Writing zero records changes
// nothing on disk. Repeated writes of the same records append again; the
// store never deduplicates.
func (w *Writer) WriteRecords(recordType string, records []any) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	path := filepath.Join(w.handle.EvidenceDir, recordType+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("evidence: open %s: %w", path, err)
	}

	enc := jsonutil.NewStreamEncoder(f)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			f.Close()
			return 0, fmt.Errorf("evidence: encode %s record: %w", recordType, err)
		}
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("evidence: close %s: %w", path, err)
	}

	w.handle.RegisterEvidenceFile(recordType, path)
	if kind, ok := CountMapping[recordType]; ok {
		w.handle.Manifest.IncrementCount(kind, len(records))
	}

	w.logger.Debug("wrote evidence records",
		"count", len(records),
		"record_type", recordType,
		"path", path)

	if err := w.handle.WriteManifest(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// WriteRecord appends a single record.
func (w *Writer) WriteRecord(recordType string, record any) (int, error) {
	return w.WriteRecords(recordType, []any{record})
}
