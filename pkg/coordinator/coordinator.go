// Package coordinator implements the Run Coordinator: it owns the run
// state machine, sequences every stage in fixed order, checkpoints the
// Progress Model, and converts stage failures into terminal
// FAILED(<stage>) status rather than letting them unwind as exceptions.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ultrai-run/ultrai/pkg/activation"
	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/delivery"
	"github.com/ultrai-run/ultrai/pkg/gateway"
	"github.com/ultrai-run/ultrai/pkg/progress"
	"github.com/ultrai-run/ultrai/pkg/readiness"
	"github.com/ultrai-run/ultrai/pkg/scheduler"
	"github.com/ultrai-run/ultrai/pkg/stats"
	"github.com/ultrai-run/ultrai/pkg/synth"
	"github.com/ultrai-run/ultrai/pkg/ultraierr"
	"github.com/ultrai-run/ultrai/pkg/validate"
)

// gatewayClient combines the narrow interfaces the stage packages declare
// (readiness's modelLister, scheduler's and synth's caller); the
// Coordinator just needs a client that satisfies all of them.
type gatewayClient interface {
	ListModels(ctx context.Context) ([]string, error)
	Call(ctx context.Context, model string, messages []gateway.Message, timeout time.Duration) (*gateway.CallResult, error)
}

// Coordinator wires every stage component together and drives runs
// through the state machine.
type Coordinator struct {
	store      *artifact.Store
	cocktails  *config.CocktailRegistry
	schedCfg   *config.SchedulerConfig
	prober     *readiness.Prober
	validator  *validate.Validator
	planner    *activation.Planner
	scheduler  *scheduler.Scheduler
	synth      *synth.Synthesizer
	aggregator *stats.Aggregator
	auditor    *delivery.Auditor

	mu        sync.Mutex
	cancels   map[string]context.CancelFunc
	runModels map[string]*progress.Model
	wg        sync.WaitGroup
}

// New constructs a Coordinator from a configured gateway client, the
// artifact store, and the loaded configuration.
func New(gw gatewayClient, store *artifact.Store, cfg *config.Config) *Coordinator {
	return &Coordinator{
		store:      store,
		cocktails:  cfg.Cocktails,
		schedCfg:   cfg.Scheduler,
		prober:     readiness.NewProber(gw, store),
		validator:  validate.NewValidator(cfg.Cocktails, store),
		planner:    activation.NewPlanner(store),
		scheduler:  scheduler.NewScheduler(gw, store, cfg.Scheduler),
		synth:      synth.NewSynthesizer(gw, store),
		aggregator: stats.NewAggregator(store),
		auditor:    delivery.NewAuditor(store),
		cancels:    make(map[string]context.CancelFunc),
		runModels:  make(map[string]*progress.Model),
	}
}

// StartRun creates the run directory and launches the pipeline in a
// background goroutine, returning as soon as the directory exists (spec
// section 6: POST /runs returns immediately).
func (c *Coordinator) StartRun(raw validate.Raw, runID string) error {
	if _, err := c.store.EnsureDir(runID); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.registerRun(runID, cancel)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runPipeline(runCtx, runID, raw)
	}()
	return nil
}

// Shutdown cancels every in-flight run's context, then waits for the
// pipeline goroutines to unwind their current stage and write a terminal
// status, up to ctx's deadline.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRunCount reports how many runs are currently in flight, for the
// health endpoint's scheduler telemetry.
func (c *Coordinator) ActiveRunCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cancels)
}

// registerRun stores the run's cancellation func under the registry mutex.
func (c *Coordinator) registerRun(runID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[runID] = cancel
}

// CancelRun cancels an in-flight run's context, aborting in-flight
// upstream calls. No separate cancelled state is recorded: aborted calls
// count as failed calls, so status.json ends FAILED with failed_stage
// naming the first stage those failures make fatal, and a run cancelled
// after its last upstream call (during stats or delivery) still reaches
// DELIVERED.
func (c *Coordinator) CancelRun(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.cancels[runID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (c *Coordinator) unregisterRun(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels, runID)
	delete(c.runModels, runID)
}

// Progress returns the live Progress Model for a run, if it is still in
// flight.
func (c *Coordinator) Progress(runID string) (*progress.Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.runModels[runID]
	return m, ok
}

// runPipeline sequences every stage in the fixed order, writing
// status.json after each transition and converting any fatal stage
// result into terminal FAILED(<stage>).
func (c *Coordinator) runPipeline(ctx context.Context, runID string, raw validate.Raw) {
	defer c.unregisterRun(runID)
	log := slog.With("run_id", runID)

	c.writeStatus(runID, StateCreated, nil, "", nil)

	readyRes := c.stageReadiness(ctx, runID)
	if !readyRes.isOK() {
		c.fail(runID, readyRes)
		return
	}
	c.writeStatus(runID, StateReadyOK, nil, "", nil)

	inputsRes := c.stageInputs(runID, raw)
	if !inputsRes.isOK() {
		c.fail(runID, inputsRes)
		return
	}
	inputs := inputsRes.value
	c.writeStatus(runID, StateInputsOK, nil, "", nil)

	cocktail, err := c.cocktails.Get(inputs.Cocktail)
	if err != nil {
		c.fail(runID, fatal[any]("activation", err))
		return
	}

	planRes := c.stagePlan(runID, cocktail, readyRes.value)
	if !planRes.isOK() {
		c.fail(runID, planRes)
		return
	}
	plan := planRes.value
	c.writeStatus(runID, StateActivated, nil, "", nil)

	model := progress.New(modelNames(plan.Executable))
	c.mu.Lock()
	c.runModels[runID] = model
	c.mu.Unlock()

	r1Res := c.stageR1(ctx, runID, inputs.Query, plan)
	if !r1Res.isOK() {
		c.fail(runID, r1Res)
		return
	}
	r1 := r1Res.value
	markRoundSteps(model, 1, r1.Records)
	c.writeStatus(runID, StateR1Done, model, "", nil)

	r2StartIndex := 1 + len(r1.Records)
	survivorNames := nonErrorModels(r1.Records)
	model.AddR2Steps(survivorNames)
	r3Index := r2StartIndex + len(survivorNames)
	model.AddStep("R3")
	statsIndex := r3Index + 1
	model.AddStep("stats")
	deliveryIndex := statsIndex + 1
	model.AddStep("delivery")

	r2Res := c.stageR2(ctx, runID, inputs.Query, r1, plan)
	if !r2Res.isOK() {
		c.fail(runID, r2Res)
		return
	}
	r2 := r2Res.value
	markRoundSteps(model, r2StartIndex, r2.Records)
	c.writeStatus(runID, StateR2Done, model, "", nil)

	ultraRes := c.stageR3(ctx, runID, inputs.Query, r2, len(plan.Executable))
	model.SetStatus(r3Index, terminalStatus(!ultraRes.isOK()), 0)
	if !ultraRes.isOK() {
		c.fail(runID, ultraRes)
		return
	}
	c.writeStatus(runID, StateR3Done, model, "", nil)

	if _, err := c.aggregator.Aggregate(runID); err != nil {
		model.SetStatus(statsIndex, progress.StepFailed, 0)
		c.fail(runID, fatal[any]("stats", err))
		return
	}
	model.SetStatus(statsIndex, progress.StepCompleted, 0)
	c.writeStatus(runID, StateStatsDone, model, "", nil)

	manifest, err := c.auditor.Audit(runID)
	if err != nil {
		model.SetStatus(deliveryIndex, progress.StepFailed, 0)
		c.fail(runID, fatal[any]("delivery", err))
		return
	}
	model.SetStatus(deliveryIndex, progress.StepCompleted, 0)

	completed := manifest.Status == "COMPLETED"
	c.writeStatus(runID, StateDelivered, model, "", nil)
	log.Info("run finished", "delivered", completed)
}

// markRoundSteps reflects a round's per-slot records back into the
// Progress Model: a non-error record marks its step COMPLETED, an error
// record FAILED. Failed slots still count toward overall completion.
//
// Steps are addressed by position rather than by "<prefix><model>" text:
// a slot's executed model can differ from the name its step was seeded
// with when a primary falls back mid-round, so index is the only stable
// correlation between a seeded step and its eventual record.
func markRoundSteps(model *progress.Model, startIndex int, records []scheduler.Record) {
	for i, r := range records {
		model.SetStatus(startIndex+i, terminalStatus(r.Error), time.Duration(r.Ms)*time.Millisecond)
	}
}

func terminalStatus(failed bool) progress.StepStatus {
	if failed {
		return progress.StepFailed
	}
	return progress.StepCompleted
}

func nonErrorModels(records []scheduler.Record) []string {
	var names []string
	for _, r := range records {
		if !r.Error {
			names = append(names, r.Model)
		}
	}
	return names
}

func modelNames(slots []activation.Slot) []string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.Primary
	}
	return names
}

func (c *Coordinator) stageReadiness(ctx context.Context, runID string) stageResult[[]string] {
	ready, err := c.prober.Probe(ctx, runID)
	if err != nil {
		return fatal[[]string]("readiness", err)
	}
	return ok(ready)
}

func (c *Coordinator) stageInputs(runID string, raw validate.Raw) stageResult[*validate.Inputs] {
	inputs, err := c.validator.Validate(runID, raw)
	if err != nil {
		return fatal[*validate.Inputs]("inputs", err)
	}
	return ok(inputs)
}

func (c *Coordinator) stagePlan(runID string, cocktail config.Cocktail, ready []string) stageResult[*activation.Plan] {
	plan, err := c.planner.Plan(runID, cocktail, ready)
	if err != nil {
		return fatal[*activation.Plan]("activation", err)
	}
	return ok(plan)
}

func (c *Coordinator) stageR1(ctx context.Context, runID, query string, plan *activation.Plan) stageResult[*scheduler.RoundResult] {
	slots := toSchedulerSlots(plan.Executable)
	result, err := c.scheduler.RunRound(ctx, runID, scheduler.RoundInitial, slots, scheduler.BuildInitialPrompt(query), len(query), 0, "03_initial")
	if err != nil {
		return fatal[*scheduler.RoundResult]("r1", err)
	}
	if quorumLost(result.Records, c.schedCfg.Quorum) {
		return fatal[*scheduler.RoundResult]("r1", fmt.Errorf("%w: R1 lost quorum, %d of %d slots succeeded, quorum is %d", ultraierr.ErrInitialRound, nonErrorCount(result.Records), len(result.Records), c.schedCfg.Quorum))
	}
	return ok(result)
}

func (c *Coordinator) stageR2(ctx context.Context, runID, query string, r1 *scheduler.RoundResult, plan *activation.Plan) stageResult[*scheduler.RoundResult] {
	survivors := survivingSlots(plan.Executable, r1.Records)
	if len(survivors) == 0 {
		return fatal[*scheduler.RoundResult]("r2", fmt.Errorf("%w: no R1 survivors to advance to R2", ultraierr.ErrMetaRound))
	}

	peerCtxLen := peerContextLength(r1.Records)
	build := scheduler.BuildMetaPrompt(query, r1.Records)
	result, err := c.scheduler.RunRound(ctx, runID, scheduler.RoundMeta, survivors, build, peerCtxLen, 0, "04_meta")
	if err != nil {
		return fatal[*scheduler.RoundResult]("r2", err)
	}
	if quorumLost(result.Records, c.schedCfg.Quorum) {
		return fatal[*scheduler.RoundResult]("r2", fmt.Errorf("%w: R2 lost quorum, %d of %d slots succeeded, quorum is %d", ultraierr.ErrMetaRound, nonErrorCount(result.Records), len(result.Records), c.schedCfg.Quorum))
	}
	return ok(result)
}

func (c *Coordinator) stageR3(ctx context.Context, runID, query string, r2 *scheduler.RoundResult, activeCount int) stageResult[any] {
	_, err := c.synth.Synthesize(ctx, runID, query, r2.Records, activeCount)
	if err != nil {
		return fatal[any]("r3", err)
	}
	return ok[any](nil)
}

// toSchedulerSlots converts activation slots into the scheduler's own
// Slot type, keeping the two packages decoupled.
func toSchedulerSlots(slots []activation.Slot) []scheduler.Slot {
	out := make([]scheduler.Slot, len(slots))
	for i, s := range slots {
		out[i] = scheduler.Slot{Primary: s.Primary, Fallback: s.Fallback}
	}
	return out
}

// survivingSlots builds R2's slot list from R1's non-error records:
// survivors advance as their own primary with no further fallback, since
// spec section 4.6 excludes failed R1 models from R2 entirely.
func survivingSlots(executable []activation.Slot, r1Records []scheduler.Record) []scheduler.Slot {
	var out []scheduler.Slot
	for _, r := range r1Records {
		if r.Error {
			continue
		}
		out = append(out, scheduler.Slot{Primary: r.Model, Fallback: r.Model})
	}
	_ = executable
	return out
}

// quorumLost reports whether a round's surviving (non-error) record count
// has dropped below quorum — the round-wide fatal condition of spec
// section 8 ("quorum of non-error records lost"), distinct from the
// per-slot error records that leave a round merely DEGRADED.
func quorumLost(records []scheduler.Record, quorum int) bool {
	return nonErrorCount(records) < quorum
}

func nonErrorCount(records []scheduler.Record) int {
	n := 0
	for _, r := range records {
		if !r.Error {
			n++
		}
	}
	return n
}

func peerContextLength(records []scheduler.Record) int {
	total := 0
	for _, r := range records {
		if !r.Error {
			total += len(r.Text)
		}
	}
	return total
}

// fail records a stage's fatal result as terminal FAILED(<stage>) status,
// carrying forward whatever Progress Model steps were seeded before the
// failing stage ran.
func (c *Coordinator) fail(runID string, res interface{ failStage() (string, error) }) {
	stage, err := res.failStage()
	model, _ := c.Progress(runID)
	c.writeStatus(runID, StateFailed, model, stage, err)
}

// failStage lets any stageResult[T] be passed to fail without exposing
// its type parameter.
func (r stageResult[T]) failStage() (string, error) {
	return r.stage, r.err
}

func (c *Coordinator) writeStatus(runID string, state State, model *progress.Model, failedStage string, failErr error) {
	status := StatusArtifact{
		RunID:        runID,
		CurrentPhase: state,
		Completed:    state == StateDelivered || state == StateFailed,
		UpdatedAt:    time.Now().UTC(),
	}
	if model != nil {
		status.Progress = model.Progress()
		for _, s := range model.Steps() {
			status.Steps = append(status.Steps, StatusArtifactStep{
				Text: s.Text, Status: string(s.Status), Time: s.Time, Progress: s.Progress,
			})
		}
	}
	if state == StateDelivered {
		status.Progress = 100
	}
	if failErr != nil {
		status.FailedStage = failedStage
		status.Error = failErr.Error()
	}

	if err := c.store.Write(runID, "status", status); err != nil {
		slog.Error("failed to write status artifact", "run_id", runID, "error", err)
	}
}
