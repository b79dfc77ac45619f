// Package evidence implements the append-only evidence store: run
// directories with a mutable manifest, JSONL record logs, per-run
// sequential IDs, and readers for the aggregation pipeline.
package evidence

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/jsonutil"
)

const runTimestamp = "20060102_150405"

// Handle represents an active run directory and its manifest context.
// The embedded ID generator is the only one minting IDs for this run.
type Handle struct {
	RunID        string
	Dir          string
	EvidenceDir  string
	ArtifactsDir string
	Manifest     *Manifest
	IDs          *IDGenerator
}

// ManifestPath returns the location of the run's manifest.json.
func (h *Handle) ManifestPath() string {
	return filepath.Join(h.Dir, "manifest.json")
}

// WriteManifest persists the manifest via a temp file and rename so a
// crash mid-write never truncates the previous manifest.
func (h *Handle) WriteManifest() error {
	data, err := jsonutil.MarshalIndent(h.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("evidence: encode manifest: %w", err)
	}
	tmpPath := h.ManifestPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, h.ManifestPath()); err != nil {
		os.Remove(tmpPath) // Clean up orphaned temp file
		return err
	}
	return nil
}

// RegisterEvidenceFile records an evidence file in the manifest, keyed by
// record type, with its path relative to the run directory in slash form.
func (h *Handle) RegisterEvidenceFile(recordType, path string) {
	rel, err := filepath.Rel(h.Dir, path)
	if err != nil {
		rel = path
	}
	h.Manifest.RegisterFile(recordType, filepath.ToSlash(rel))
}

// RegisterTool records the execution status of a collector tool.
func (h *Handle) RegisterTool(name string, status ToolStatus) {
	h.Manifest.RegisterTool(name, status)
}

// AddDiagnostic appends a note to the manifest's diagnostics log.
func (h *Handle) AddDiagnostic(message string) {
	h.Manifest.AddDiagnostic(message)
}

// Finalize flushes the manifest to disk.
func (h *Handle) Finalize() error {
	return h.WriteManifest()
}

// Manager creates and loads run directories beneath the runs root.
type Manager struct {
	BaseDir string

	logger *slog.Logger
	now    func() time.Time
}

// NewManager resolves the runs root: explicit baseDir first, then the
// APIRISK_RUNS_DIR environment variable, then ~/.apirisk/runs.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	root := baseDir
	if root == "" {
		root = os.Getenv(defaults.RunsDirEnv)
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("evidence: resolve home directory: %w", err)
		}
		root = filepath.Join(home, defaults.RunsDirName, "runs")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("evidence: create runs root: %w", err)
	}
	return &Manager{BaseDir: root, logger: orDefault(logger), now: time.Now}, nil
}

// CreateRun allocates a fresh run directory with evidence and artifacts
// subdirectories and writes the initial manifest.
func (m *Manager) CreateRun(targetName, targetPath string, gitMetadata map[string]any) (*Handle, error) {
	runID, err := m.generateRunID()
	if err != nil {
		return nil, err
	}
	runDir := filepath.Join(m.BaseDir, runID)
	evidenceDir := filepath.Join(runDir, "evidence")
	artifactsDir := filepath.Join(runDir, "artifacts")
	for _, dir := range []string{evidenceDir, artifactsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("evidence: create run directory: %w", err)
		}
	}

	if gitMetadata == nil {
		gitMetadata = map[string]any{}
	}
	manifest := NewManifest(runID, TargetMetadata{
		Name: targetName,
		Path: targetPath,
		Git:  gitMetadata,
	})

	ids, err := NewIDGenerator(runID)
	if err != nil {
		return nil, err
	}

	handle := &Handle{
		RunID:        runID,
		Dir:          runDir,
		EvidenceDir:  evidenceDir,
		ArtifactsDir: artifactsDir,
		Manifest:     manifest,
		IDs:          ids,
	}

	m.logger.Info("created run directory; automatic pruning is not implemented, clean up old runs manually",
		"run_id", runID,
		"dir", runDir)

	if err := handle.WriteManifest(); err != nil {
		return nil, err
	}
	return handle, nil
}

// LoadRun resolves a run ID or path to an existing run directory and
// deserializes its manifest. Counters are not reseeded from prior
// evidence; new IDs minted against a loaded run restart from 0001.
func (m *Manager) LoadRun(run string) (*Handle, error) {
	runDir := m.resolveRunPath(run)

	manifestPath := filepath.Join(runDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, manifestPath)
		}
		return nil, fmt.Errorf("evidence: read manifest: %w", err)
	}

	var manifest Manifest
	if err := jsonutil.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("evidence: parse manifest %s: %w", manifestPath, err)
	}
	manifest.ensureDefaults()

	ids, err := NewIDGenerator(manifest.RunID)
	if err != nil {
		return nil, err
	}

	return &Handle{
		RunID:        manifest.RunID,
		Dir:          runDir,
		EvidenceDir:  filepath.Join(runDir, "evidence"),
		ArtifactsDir: filepath.Join(runDir, "artifacts"),
		Manifest:     &manifest,
		IDs:          ids,
	}, nil
}

// generateRunID derives a UTC timestamp base and disambiguates collisions
// with a numeric suffix: 20251024_193012Z, then 20251024_193012Z_01, ...
func (m *Manager) generateRunID() (string, error) {
	base := m.now().UTC().Format(runTimestamp) + "Z"
	candidate := base
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(m.BaseDir, candidate)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return candidate, nil
			}
			return "", fmt.Errorf("evidence: probe run directory: %w", err)
		}
		candidate = fmt.Sprintf("%s_%02d", base, counter)
	}
}

func (m *Manager) resolveRunPath(run string) string {
	if filepath.IsAbs(run) {
		return filepath.Clean(run)
	}
	// A bare run ID or relative path resolves beneath the runs root.
	if !strings.ContainsRune(run, os.PathSeparator) {
		return filepath.Join(m.BaseDir, run)
	}
	abs, err := filepath.Abs(run)
	if err != nil {
		return filepath.Join(m.BaseDir, run)
	}
	return abs
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
