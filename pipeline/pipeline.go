package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcshock/planpipe/plan"
	"github.com/google/uuid"
)

// StageFunc runs one unit of the planning pipeline against the shared run
// state. A stage mutates only its documented output fields and must be
// idempotent when re-run against an unchanged input state.
type StageFunc func(ctx context.Context, state *plan.RunState) error

// Stage pairs a stage function with the name used in observer hooks,
// configuration, and state.CurrentStage.
type Stage struct {
	Name string
	Run  StageFunc
}

// ErrAwaitingApproval is returned by the human-review stage after the run
// state has been prepared for suspension. Callers should treat it as
// "pipeline paused for a decision, not failed": the run is resumed by
// re-running the remaining stages once a decision arrives (see RunFrom and
// RunOptions.StageOffset).
var ErrAwaitingApproval = errors.New("pipeline awaiting human approval")

// IsAwaitingApproval reports whether err marks a suspension at the review gate.
func IsAwaitingApproval(err error) bool { return errors.Is(err, ErrAwaitingApproval) }

// Observer provides pre/post hooks for pipeline and stage execution so run
// progress can be logged or persisted. BeforeRun is called before any stage;
// BeforeStage/AfterStage around each stage; AfterRun when the pipeline stops
// (success, suspension, or error).
type Observer interface {
	BeforeRun(ctx context.Context, runID, name string, state *plan.RunState) error
	AfterRun(ctx context.Context, runID string, state *plan.RunState, err error) error
	BeforeStage(ctx context.Context, runID string, stageIndex int, stageName string, state *plan.RunState) error
	AfterStage(ctx context.Context, runID string, stageIndex int, stageName string, state *plan.RunState, stageErr error, duration time.Duration) error
}

// RunOptions attaches an Observer and optional RunID. If both RunID and
// state.RunID are empty, a new UUID is generated for the run. StageOffset is
// added to each stage index when calling the Observer (use when resuming: run
// only the remaining stages and set StageOffset to the index of the first
// stage being run so the observer sees global indices).
type RunOptions struct {
	Observer    Observer
	RunID       string
	StageOffset int
}

// Pipeline runs a linear chain of named stages over a single run state.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// IndexOf returns the index of the named stage, or -1 if absent.
func (p *Pipeline) IndexOf(name string) int {
	for i, s := range p.Stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Run executes every stage in order against state. See RunFrom.
func (p *Pipeline) Run(ctx context.Context, state *plan.RunState, opts *RunOptions) error {
	return p.RunFrom(ctx, state, 0, opts)
}

// RunFrom executes stages[from:] in order against state. Each stage sees the
// full output of all prior stages. The first stage error stops the run and is
// returned wrapped with the failing stage's index and name; ErrAwaitingApproval
// propagates the same way so callers distinguish suspension from failure with
// IsAwaitingApproval.
func (p *Pipeline) RunFrom(ctx context.Context, state *plan.RunState, from int, opts *RunOptions) error {
	if state == nil {
		return fmt.Errorf("pipeline %s: nil run state", p.Name)
	}
	if from < 0 || from > len(p.Stages) {
		return fmt.Errorf("pipeline %s: stage index %d out of range", p.Name, from)
	}
	if opts == nil || opts.Observer == nil {
		return p.runStages(ctx, state, from, nil, state.RunID, 0)
	}
	runID := opts.RunID
	if runID == "" {
		runID = state.RunID
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	if err := opts.Observer.BeforeRun(ctx, runID, p.Name, state); err != nil {
		return fmt.Errorf("before run: %w", err)
	}
	err := p.runStages(ctx, state, from, opts.Observer, runID, opts.StageOffset)
	if postErr := opts.Observer.AfterRun(ctx, runID, state, err); postErr != nil {
		// Don't mask the pipeline error
		if err == nil {
			err = fmt.Errorf("after run: %w", postErr)
		}
	}
	return err
}

func (p *Pipeline) runStages(ctx context.Context, state *plan.RunState, from int, obs Observer, runID string, stageOffset int) error {
	for i := from; i < len(p.Stages); i++ {
		stage := p.Stages[i]
		globalIdx := i + stageOffset
		state.CurrentStage = stage.Name
		if obs != nil {
			if err := obs.BeforeStage(ctx, runID, globalIdx, stage.Name, state); err != nil {
				return fmt.Errorf("before stage %d (%s): %w", globalIdx, stage.Name, err)
			}
		}
		start := time.Now()
		stageErr := stage.Run(ctx, state)
		duration := time.Since(start)
		if obs != nil {
			if postErr := obs.AfterStage(ctx, runID, globalIdx, stage.Name, state, stageErr, duration); postErr != nil {
				if stageErr == nil {
					stageErr = fmt.Errorf("after stage: %w", postErr)
				}
			}
		}
		if stageErr != nil {
			return fmt.Errorf("stage %d (%s): %w", globalIdx, stage.Name, stageErr)
		}
	}
	return nil
}
