// Package scheduler drives R1 and R2: bounded-concurrency fan-out over a
// round's executable slots, each running a primary-then-fallback chain,
// with results collected in slot order regardless of completion order —
// the same indexed-channel-then-sort idiom as a stage's multi-agent
// fan-out, generalized from a DB-backed worker launch to an in-process
// semaphore-bounded one.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/gateway"
)

// caller is the subset of gateway.Client the scheduler depends on.
type caller interface {
	Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error)
}

// Scheduler is the Round Scheduler (spec section 4.6).
type Scheduler struct {
	gateway caller
	store   *artifact.Store
	cfg     *config.SchedulerConfig
}

// NewScheduler constructs a Scheduler bound to a gateway client, artifact
// store, and scheduler configuration.
func NewScheduler(gw caller, store *artifact.Store, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{gateway: gw, store: store, cfg: cfg}
}

// indexedRecord pairs a Record with its launch index, mirroring the
// teacher's indexedAgentResult. primaryFailed is set whenever the slot's
// primary model did not succeed, even if a fallback rescued the slot
// with a non-error record — failed_models reports the primary, not
// whichever model ultimately produced the text (spec section 8, S3).
type indexedRecord struct {
	index         int
	record        Record
	primaryFailed bool
}

// RunRound executes a round over slots, writing <artifactName>.json and
// <artifactName>_status.json, and returns the round result.
func (s *Scheduler) RunRound(ctx context.Context, runID string, round RoundTag, slots []Slot, build PromptBuilder, contextLen, attachments int, artifactName string) (*RoundResult, error) {
	log := slog.With("run_id", runID, "round", round)

	concurrency := effectiveConcurrency(contextLen, attachments, len(slots))
	if s.cfg.MaxConcurrency > 0 && concurrency > s.cfg.MaxConcurrency {
		concurrency = s.cfg.MaxConcurrency
	}
	sem := make(chan struct{}, concurrency)

	results := make(chan indexedRecord, len(slots))
	var wg sync.WaitGroup

	for i, slot := range slots {
		wg.Add(1)
		go func(idx int, slot Slot) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec, primaryFailed := s.runSlot(ctx, string(round), slot, build)
			results <- indexedRecord{index: idx, record: rec, primaryFailed: primaryFailed}
		}(i, slot)
	}

	wg.Wait()
	close(results)

	indexed := collectAndSort(results)

	records := make([]Record, len(indexed))
	var failedModels []string
	for i, ir := range indexed {
		records[i] = ir.record
		if ir.primaryFailed {
			failedModels = append(failedModels, slots[i].Primary)
		}
	}

	status := StatusCompleted
	if len(failedModels) > 0 {
		status = StatusDegraded
	}

	result := &RoundResult{
		Records:      records,
		FailedModels: failedModels,
		Status:       status,
		Concurrency:  concurrency,
	}

	if err := s.writeArtifacts(runID, round, artifactName, result); err != nil {
		return nil, err
	}

	log.Info("round complete", "status", status, "count", len(records), "failed", len(failedModels))
	return result, nil
}

// runSlot performs the primary-then-fallback chain for one slot. The
// returned bool reports whether the primary failed, independent of
// whether a fallback then rescued the slot with a non-error record.
func (s *Scheduler) runSlot(ctx context.Context, round string, slot Slot, build PromptBuilder) (Record, bool) {
	text, ms, ok := s.attemptChain(ctx, slot.Primary, build)
	if ok {
		return Record{Round: round, Model: slot.Primary, Text: text, Ms: ms, Error: false}, false
	}

	if slot.Fallback != slot.Primary {
		text, ms, ok = s.attemptOnce(ctx, slot.Fallback, build, s.cfg.FallbackTimeout)
		if ok {
			return Record{Round: round, Model: slot.Fallback, Text: text, Ms: ms, Error: false}, true
		}
	}

	return Record{Round: round, Model: slot.Primary, Text: "", Ms: 0, Error: true}, true
}

// attemptChain runs up to PrimaryAttempts attempts of model, honoring the
// rate-limit fast-fail (jump straight past remaining attempts) and
// exponential backoff between attempts.
func (s *Scheduler) attemptChain(ctx context.Context, model string, build PromptBuilder) (string, int64, bool) {
	for attempt := 0; attempt < s.cfg.PrimaryAttempts; attempt++ {
		text, ms, err := s.call(ctx, model, build, s.cfg.PrimaryTimeout)
		if err == nil {
			return text, ms, true
		}

		if errors.Is(err, gateway.ErrRateLimited) {
			return "", 0, false
		}

		if attempt < s.cfg.PrimaryAttempts-1 {
			delay := backoffDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", 0, false
			}
		}
	}
	return "", 0, false
}

func (s *Scheduler) attemptOnce(ctx context.Context, model string, build PromptBuilder, timeout time.Duration) (string, int64, bool) {
	text, ms, err := s.call(ctx, model, build, timeout)
	if err != nil {
		return "", 0, false
	}
	return text, ms, true
}

func (s *Scheduler) call(ctx context.Context, model string, build PromptBuilder, timeout time.Duration) (string, int64, error) {
	start := time.Now()
	result, err := s.gateway.Call(ctx, model, build(model), timeout)
	if err != nil {
		return "", 0, err
	}
	return result.Text, time.Since(start).Milliseconds(), nil
}

func backoffDelay(attempt int) time.Duration {
	base := 300 * time.Millisecond
	capped := 3 * time.Second
	d := base << attempt
	if d > capped {
		return capped
	}
	return d
}

// collectAndSort drains the indexedRecord channel and returns entries
// sorted by their original slot index.
func collectAndSort(ch <-chan indexedRecord) []indexedRecord {
	var indexed []indexedRecord
	for ir := range ch {
		indexed = append(indexed, ir)
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].index < indexed[j].index
	})
	return indexed
}

// statusArtifact is the <NN>_<round>_status.json schema.
type statusArtifact struct {
	Status   Status       `json:"status"`
	Round    string       `json:"round"`
	Details  statusDetail `json:"details"`
	Metadata statusMeta   `json:"metadata"`
}

type statusDetail struct {
	Count         int      `json:"count"`
	Concurrency   int      `json:"concurrency"`
	TimingBudgets timing   `json:"timing_budgets"`
	FailedModels  []string `json:"failed_models"`
}

type statusMeta struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
}

type timing struct {
	PrimaryTimeoutMs  int64 `json:"primary_timeout_ms"`
	FallbackTimeoutMs int64 `json:"fallback_timeout_ms"`
}

func (s *Scheduler) writeArtifacts(runID string, round RoundTag, artifactName string, result *RoundResult) error {
	if err := s.store.Write(runID, artifactName, result.Records); err != nil {
		return err
	}

	failed := result.FailedModels
	if failed == nil {
		failed = []string{}
	}
	status := statusArtifact{
		Status: result.Status,
		Round:  string(round),
		Metadata: statusMeta{
			RunID:     runID,
			Timestamp: time.Now().UTC(),
			Phase:     string(round),
		},
		Details: statusDetail{
			Count:        len(result.Records),
			Concurrency:  result.Concurrency,
			FailedModels: failed,
			TimingBudgets: timing{
				PrimaryTimeoutMs:  s.cfg.PrimaryTimeout.Milliseconds(),
				FallbackTimeoutMs: s.cfg.FallbackTimeout.Milliseconds(),
			},
		},
	}
	return s.store.Write(runID, artifactName+"_status", status)
}
