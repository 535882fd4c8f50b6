// Package artifact implements the durable, per-run JSON artifact store:
// atomic writes, path-safe run directories, and ordered listing.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

// runIDPattern constrains run IDs to URL-safe characters, matching spec
// section 4.1.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrCorruptArtifact indicates an artifact file exists but failed to parse
// as JSON.
var ErrCorruptArtifact = errors.New("corrupt artifact")

// Store is the atomic read/write layer over runs/<RunID>/<name>.json files.
type Store struct {
	runsRoot string
}

// NewStore creates a Store rooted at runsRoot. The directory is created on
// first use; callers do not need to pre-create it.
func NewStore(runsRoot string) *Store {
	return &Store{runsRoot: runsRoot}
}

// RunsRoot returns the configured runs root directory.
func (s *Store) RunsRoot() string {
	return s.runsRoot
}

// BuildDir validates runID and returns the absolute directory for it,
// guaranteed to resolve under the runs root. Returns ultraierr.ErrBadRunID
// for any ID that fails the character whitelist or that would resolve
// outside the runs root (e.g. "../etc").
func (s *Store) BuildDir(runID string) (string, error) {
	if runID == "" || !runIDPattern.MatchString(runID) {
		return "", fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9_-]", ultraierr.ErrBadRunID, runID)
	}

	root, err := filepath.Abs(s.runsRoot)
	if err != nil {
		return "", fmt.Errorf("%w: resolving runs root: %v", ultraierr.ErrBadRunID, err)
	}
	dir := filepath.Join(root, runID)

	// Defense in depth: even though the regex above already rejects "/" and
	// "..", re-verify containment after Clean so a future regex relaxation
	// can't silently reopen a traversal.
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes runs root", ultraierr.ErrBadRunID, runID)
	}
	return dir, nil
}

// EnsureDir creates the run directory (and the runs root) if absent.
func (s *Store) EnsureDir(runID string) (string, error) {
	dir, err := s.BuildDir(runID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating run directory: %v", ultraierr.ErrArtifact, err)
	}
	return dir, nil
}

// Write serializes value as indented JSON and atomically installs it as
// <runID>/<name>.json: write to a sibling temp file, fsync it, rename over
// the target, then fsync the containing directory. A crash between the
// write and the rename leaves no file or the previous file — never a
// partial one.
func (s *Store) Write(runID, name string, value any) error {
	dir, err := s.EnsureDir(runID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling %s: %v", ultraierr.ErrArtifact, name, err)
	}

	target := filepath.Join(dir, name+".json")
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %v", ultraierr.ErrArtifact, name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", ultraierr.ErrArtifact, name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: fsyncing %s: %v", ultraierr.ErrArtifact, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ultraierr.ErrArtifact, name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("%w: installing %s: %v", ultraierr.ErrArtifact, name, err)
	}
	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}

	slog.Debug("artifact written", "run_id", runID, "name", name)
	return nil
}

// Read parses <runID>/<name>.json into out. Returns ultraierr.ErrNotFound
// when the file is absent and ErrCorruptArtifact (wrapped in
// ultraierr.ErrArtifact) when JSON parsing fails.
func (s *Store) Read(runID, name string, out any) error {
	dir, err := s.BuildDir(runID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ultraierr.ErrNotFound, name)
		}
		return fmt.Errorf("%w: reading %s: %v", ultraierr.ErrArtifact, name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w: %s: %v", ultraierr.ErrArtifact, ErrCorruptArtifact, name, err)
	}
	return nil
}

// ReadRaw returns the raw JSON bytes of <runID>/<name>.json without
// parsing, for callers (the HTTP artifact-passthrough endpoint) that
// forward the artifact verbatim rather than decode it into a Go type.
func (s *Store) ReadRaw(runID, name string) ([]byte, error) {
	dir, err := s.BuildDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ultraierr.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ultraierr.ErrArtifact, name, err)
	}
	return data, nil
}

// Exists reports whether <runID>/<name>.json is present, without parsing it.
func (s *Store) Exists(runID, name string) bool {
	dir, err := s.BuildDir(runID)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, name+".json"))
	return err == nil
}

// List returns the artifact filenames present under runID, sorted by their
// numeric phase prefix (matching the invariant in spec section 3 that
// ordering is total and positional).
func (s *Store) List(runID string) ([]string, error) {
	dir, err := s.BuildDir(runID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ultraierr.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("%w: listing %s: %v", ultraierr.ErrArtifact, runID, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return phasePrefix(names[i]) < phasePrefix(names[j])
	})
	return names, nil
}

// phasePrefix extracts the leading numeric phase prefix of an artifact
// filename (e.g. "03_initial_status.json" -> 3). Non-numeric-prefixed
// artifacts (status.json, delivery.json, stats.json) sort after all
// numbered phases; their order relative to each other is not defined.
func phasePrefix(name string) int {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 1 << 30
	}
	n, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 1 << 30
	}
	return n
}
