// Package delivery implements the Delivery Auditor: it verifies that
// every required artifact exists and parses, and compiles the delivery
// manifest consumed by the status endpoint and the CLI's exit code.
package delivery

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ultrai-run/ultrai/pkg/artifact"
)

// ArtifactStatus classifies one artifact's delivery state.
type ArtifactStatus string

const (
	StatusReady   ArtifactStatus = "ready"
	StatusMissing ArtifactStatus = "missing"
	StatusError   ArtifactStatus = "error"
)

// requiredArtifacts is the fixed list of artifacts every completed run
// must produce (spec section 3).
var requiredArtifacts = []string{
	"00_ready",
	"01_inputs",
	"02_activate",
	"03_initial",
	"03_initial_status",
	"04_meta",
	"04_meta_status",
	"05_ultrai",
	"05_ultrai_status",
	"stats",
}

// ArtifactEntry is one entry of delivery.json's artifacts list.
type ArtifactEntry struct {
	Name   string         `json:"name"`
	Status ArtifactStatus `json:"status"`
}

// Manifest is the delivery.json schema.
type Manifest struct {
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	Artifacts       []ArtifactEntry `json:"artifacts"`
	MissingRequired []string        `json:"missing_required"`
	Metadata        manifestMeta    `json:"metadata"`
}

type manifestMeta struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	TotalArtifacts int      `json:"total_artifacts"`
}

// Auditor is the Delivery Auditor (spec section 4.9).
type Auditor struct {
	store *artifact.Store
}

// NewAuditor constructs an Auditor bound to an artifact store.
func NewAuditor(store *artifact.Store) *Auditor {
	return &Auditor{store: store}
}

// Audit classifies every required artifact and writes delivery.json.
// status == COMPLETED iff missing_required is empty and no artifact is
// classified error.
func (a *Auditor) Audit(runID string) (*Manifest, error) {
	log := slog.With("run_id", runID, "stage", "delivery")

	dir, err := a.store.BuildDir(runID)
	if err != nil {
		return nil, err
	}

	var entries []ArtifactEntry
	var missing []string
	anyError := false

	for _, name := range requiredArtifacts {
		status := classify(dir, name)
		entries = append(entries, ArtifactEntry{Name: name, Status: status})
		switch status {
		case StatusMissing:
			missing = append(missing, name)
		case StatusError:
			anyError = true
		}
	}
	if missing == nil {
		missing = []string{}
	}

	overall := "COMPLETED"
	message := "all required artifacts delivered"
	if len(missing) > 0 || anyError {
		overall = "INCOMPLETE"
		message = "one or more required artifacts are missing or malformed"
	}

	manifest := &Manifest{
		Status:          overall,
		Message:         message,
		Artifacts:       entries,
		MissingRequired: missing,
		Metadata: manifestMeta{
			RunID:          runID,
			Timestamp:      time.Now().UTC(),
			TotalArtifacts: len(entries),
		},
	}

	if err := a.store.Write(runID, "delivery", manifest); err != nil {
		return nil, err
	}

	log.Info("delivery audit complete", "status", overall, "missing", len(missing))
	return manifest, nil
}

func classify(dir, name string) ArtifactStatus {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return StatusMissing
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return StatusError
	}
	return StatusReady
}
