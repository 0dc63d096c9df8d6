package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
	"github.com/dcshock/planpipe/stages"
)

// Caller-sequencing errors from the control surface. They never corrupt the
// run state; the offending call is simply refused.
var (
	// ErrAlreadyRunning is returned by Start while a run is still active.
	ErrAlreadyRunning = errors.New("a run is already active")
	// ErrInvalidState is returned by Decide when no run awaits approval.
	ErrInvalidState = errors.New("run is not awaiting approval")
	// ErrAlreadyDecided is returned by Decide after a decision was recorded.
	ErrAlreadyDecided = errors.New("decision already recorded for this run")
)

// Engine owns the run lifecycle: it is the single writer of the run state,
// sequences the pipeline stages on a dedicated goroutine, publishes a
// snapshot after every completed stage, and suspends at the review gate until
// Decide is called. One run is active at a time; a finished run must be
// restarted fresh via Start.
type Engine struct {
	pipe     *pipeline.Pipeline
	store    *StatusStore
	observer pipeline.Observer
	logger   *slog.Logger

	gateIdx          int
	adjustmentFactor float64

	mu     sync.Mutex
	active *activeRun
}

// activeRun tracks the in-flight run. The channels let callers wait for the
// review gate or for termination without polling.
type activeRun struct {
	runID    string
	ctx      context.Context
	state    *plan.RunState
	awaiting chan struct{}
	done     chan struct{}
	decided  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches an extra observer (logging, persistence) alongside
// the engine's own snapshot publisher.
func WithObserver(obs pipeline.Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// WithLogger sets the engine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAdjustmentFactor sets the order-quantity multiplier applied on a
// "modify" decision.
func WithAdjustmentFactor(factor float64) Option {
	return func(e *Engine) { e.adjustmentFactor = factor }
}

// New builds an engine around a pipeline. The pipeline must contain the
// human-review gate stage; runs suspend there until a decision arrives.
func New(pipe *pipeline.Pipeline, opts ...Option) (*Engine, error) {
	e := &Engine{
		pipe:             pipe,
		store:            NewStatusStore(),
		logger:           slog.Default(),
		adjustmentFactor: 1.1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.gateIdx = pipe.IndexOf(stages.HumanReview)
	if e.gateIdx < 0 {
		return nil, fmt.Errorf("pipeline %q has no %s stage", pipe.Name, stages.HumanReview)
	}
	return e, nil
}

// Store exposes the engine's status store for external pollers.
func (e *Engine) Store() *StatusStore { return e.store }

// Status returns the latest published snapshot, or nil before the first run.
// It never blocks on the running pipeline.
func (e *Engine) Status() *plan.RunState {
	return e.store.Load()
}

// Start begins a new run over the given input and returns its run ID. It
// fails with ErrAlreadyRunning while a previous run has not reached a
// terminal status. The run executes on its own goroutine; the passed context
// only carries values, so callers' request cancellation does not abort the
// run mid-stage.
func (e *Engine) Start(ctx context.Context, input plan.Input) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		select {
		case <-e.active.done:
		default:
			return "", ErrAlreadyRunning
		}
	}

	runID := uuid.New().String()
	run := &activeRun{
		runID:    runID,
		ctx:      context.WithoutCancel(ctx),
		state:    plan.NewRunState(runID, input),
		awaiting: make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.active = run
	e.store.Publish(run.state)

	e.logger.Info("run started", "run_id", runID, "pipeline", e.pipe.Name, "records", len(input.Records))
	go e.execute(run)
	return runID, nil
}

// execute drives the run up to the review gate. The goroutine exits when the
// run suspends or terminates; Decide resumes on a fresh goroutine.
func (e *Engine) execute(run *activeRun) {
	if err := run.state.Transition(plan.StatusRunning); err != nil {
		e.finish(run, err)
		return
	}
	e.store.Publish(run.state)

	err := e.pipe.Run(run.ctx, run.state, &pipeline.RunOptions{
		Observer: e.runObserver(),
		RunID:    run.runID,
	})
	switch {
	case pipeline.IsAwaitingApproval(err):
		if terr := run.state.Transition(plan.StatusAwaitingApproval); terr != nil {
			e.finish(run, terr)
			return
		}
		e.store.Publish(run.state)
		e.logger.Info("run awaiting approval", "run_id", run.runID,
			"escalations", len(run.state.Escalations), "critical", len(run.state.CriticalEscalations()))
		close(run.awaiting)
	case err != nil:
		e.finish(run, err)
	default:
		// A pipeline without suspension ran to the end in one pass.
		e.complete(run)
	}
}

// Decide records the human decision for the run awaiting approval. Approve
// and modify resume the pipeline past the gate (modify first scales order
// quantities by the adjustment factor); reject terminates the run without
// evaluation. The first call wins; later calls fail with ErrAlreadyDecided.
func (e *Engine) Decide(decision plan.Decision) error {
	if !decision.Valid() {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidState, decision)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run := e.active
	if run == nil {
		return ErrInvalidState
	}
	if run.decided {
		return ErrAlreadyDecided
	}
	select {
	case <-run.awaiting:
	default:
		return ErrInvalidState
	}

	run.decided = true
	run.state.Decision = decision
	e.logger.Info("decision recorded", "run_id", run.runID, "decision", string(decision))

	if decision == plan.DecisionReject {
		if err := run.state.Transition(plan.StatusRejected); err != nil {
			e.finish(run, err)
			return nil
		}
		e.store.Publish(run.state)
		e.logger.Info("run rejected", "run_id", run.runID)
		close(run.done)
		return nil
	}

	if err := run.state.Transition(plan.StatusApproved); err != nil {
		e.finish(run, err)
		return nil
	}
	if decision == plan.DecisionModify {
		run.state.Inventory.Scale(e.adjustmentFactor)
		run.state.AddAlert(stages.HumanReview, plan.SeverityInfo,
			"order quantities adjusted by factor %.2f per review decision", e.adjustmentFactor)
		if inv := run.state.Inventory; inv.BudgetLimit > 0 && inv.BudgetUsed > inv.BudgetLimit {
			run.state.Escalate(stages.HumanReview, "", plan.SeverityCritical,
				"adjusted orders cost %.0f, over the %.0f budget limit", inv.BudgetUsed, inv.BudgetLimit)
		}
	}
	e.store.Publish(run.state)

	go e.resume(run)
	return nil
}

// resume runs the stages past the review gate after approval.
func (e *Engine) resume(run *activeRun) {
	err := e.pipe.RunFrom(run.ctx, run.state, e.gateIdx+1, &pipeline.RunOptions{
		Observer: e.runObserver(),
		RunID:    run.runID,
	})
	if err != nil {
		e.finish(run, err)
		return
	}
	e.complete(run)
}

func (e *Engine) complete(run *activeRun) {
	if err := run.state.Transition(plan.StatusCompleted); err != nil {
		e.finish(run, err)
		return
	}
	e.store.Publish(run.state)
	e.logger.Info("run completed", "run_id", run.runID)
	close(run.done)
}

func (e *Engine) finish(run *activeRun, err error) {
	run.state.Fail(err)
	e.store.Publish(run.state)
	e.logger.Error("run failed", "run_id", run.runID, "error", err)
	close(run.done)
}

// AwaitApproval blocks until the active run reaches the review gate, the run
// terminates first, or ctx expires.
func (e *Engine) AwaitApproval(ctx context.Context) error {
	run := e.currentRun()
	if run == nil {
		return ErrInvalidState
	}
	select {
	case <-run.awaiting:
		return nil
	case <-run.done:
		return fmt.Errorf("run %s terminated before the review gate", run.runID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitDone blocks until the active run reaches a terminal status or ctx
// expires.
func (e *Engine) WaitDone(ctx context.Context) error {
	run := e.currentRun()
	if run == nil {
		return ErrInvalidState
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) currentRun() *activeRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// runObserver combines the snapshot publisher with any user observer.
func (e *Engine) runObserver() pipeline.Observer {
	pub := publisher{store: e.store}
	if e.observer == nil {
		return pub
	}
	return pipeline.MultiObserver(pub, e.observer)
}

// publisher pushes a snapshot after every successfully completed stage, so
// pollers only ever see the result of whole stages.
type publisher struct {
	pipeline.NopObserver
	store *StatusStore
}

func (p publisher) AfterStage(_ context.Context, _ string, _ int, _ string, state *plan.RunState, stageErr error, _ time.Duration) error {
	if stageErr == nil {
		p.store.Publish(state)
	}
	return nil
}
