// Package synth implements the Synthesizer (R3): neutral-model selection,
// adaptive timeout and per-draft truncation, and the single upstream call
// that produces the ULTRA record.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/gateway"
	"github.com/ultrai-run/ultrai/pkg/scheduler"
	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

const r3Constraint = "Do not introduce new information beyond the META drafts below. " +
	"Do not use your own knowledge. Omit low-confidence claims where models disagree. " +
	"Your role is to merge and synthesize, not to contribute new content."

const r3Task = "Merge convergences, resolve contradictions, and cite which claims were retained or omitted. " +
	"Produce one coherent synthesis with confidence notes and basic statistics."

// caller is the subset of gateway.Client the synthesizer depends on.
type caller interface {
	Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error)
}

// Synthesizer is the Synthesizer component (spec section 4.7).
type Synthesizer struct {
	gateway caller
	store   *artifact.Store
}

// NewSynthesizer constructs a Synthesizer bound to a gateway client and
// artifact store.
func NewSynthesizer(gw caller, store *artifact.Store) *Synthesizer {
	return &Synthesizer{gateway: gw, store: store}
}

// ultraRecord is the 05_ultrai.json schema.
type ultraRecord struct {
	Round         string     `json:"round"`
	Model         string     `json:"model"`
	NeutralChosen string     `json:"neutralChosen"`
	Text          string     `json:"text"`
	Ms            int64      `json:"ms"`
	Stats         ultraStats `json:"stats"`
}

type ultraStats struct {
	ActiveCount int `json:"active_count"`
	MetaCount   int `json:"meta_count"`
}

type ultraStatusArtifact struct {
	Status  string            `json:"status"`
	Round   string            `json:"round"`
	Details ultraStatusDetail `json:"details"`
}

type ultraStatusDetail struct {
	TimeoutS        int `json:"timeout_s"`
	MaxCharsPerDraft int `json:"max_chars_per_draft"`
}

// Synthesize reads the non-error META records, selects the neutral model,
// computes the adaptive timeout/truncation, performs a single upstream
// call, and writes 05_ultrai.json / 05_ultrai_status.json. A failure
// (including a mid-stream error) escalates to ultraierr.ErrUltrAISynthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, runID string, query string, metaRecords []scheduler.Record, activeCount int) (*ultraRecord, error) {
	log := slog.With("run_id", runID, "stage", "ultrai")

	var nonError []scheduler.Record
	var metaModels []string
	for _, r := range metaRecords {
		if !r.Error {
			nonError = append(nonError, r)
			metaModels = append(metaModels, r.Model)
		}
	}

	if len(nonError) == 0 {
		return nil, fmt.Errorf("%w: no non-error META records to synthesize from", ultraierr.ErrUltrAISynthesis)
	}

	neutral := selectNeutral(metaModels)

	peerCtxLen := 0
	for _, r := range nonError {
		peerCtxLen += len(r.Text)
	}
	timeout := synthesisTimeout(peerCtxLen, len(nonError))
	maxChars := maxCharsPerDraft(timeout)

	messages := buildR3Prompt(query, nonError, maxChars)

	start := time.Now()
	result, err := s.gateway.Call(ctx, neutral, messages, timeout)
	if err != nil {
		log.Error("synthesis call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ultraierr.ErrUltrAISynthesis, err)
	}
	elapsed := time.Since(start).Milliseconds()

	record := &ultraRecord{
		Round:         "ULTRAI",
		Model:         neutral,
		NeutralChosen: neutral,
		Text:          result.Text,
		Ms:            elapsed,
		Stats: ultraStats{
			ActiveCount: activeCount,
			MetaCount:   len(nonError),
		},
	}

	if err := s.store.Write(runID, "05_ultrai", record); err != nil {
		return nil, err
	}

	status := ultraStatusArtifact{
		Status: "COMPLETED",
		Round:  "ULTRAI",
		Details: ultraStatusDetail{
			TimeoutS:         int(timeout / time.Second),
			MaxCharsPerDraft: maxChars,
		},
	}
	if err := s.store.Write(runID, "05_ultrai_status", status); err != nil {
		return nil, err
	}

	log.Info("synthesis complete", "neutral", neutral, "timeout_s", status.Details.TimeoutS)
	return record, nil
}

// buildR3Prompt assembles the system/user message pair per spec section 4.7.
func buildR3Prompt(query string, metaRecords []scheduler.Record, maxChars int) []gateway.Message {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(r3Constraint)
	b.WriteString("\n\n")
	for _, r := range metaRecords {
		b.WriteString(fmt.Sprintf("- %s: %s\n", r.Model, truncate(r.Text, maxChars)))
	}
	b.WriteString("\n")
	b.WriteString(r3Task)

	return []gateway.Message{
		{Role: "system", Content: "You are the ULTRAI neutral synthesis model (R3)."},
		{Role: "user", Content: b.String()},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
