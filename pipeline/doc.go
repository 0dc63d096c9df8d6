// Package pipeline provides the stage runner for planning runs. A Pipeline
// executes named stages in a fixed order over a single *plan.RunState; each
// stage sees the full output of every stage before it, so there is no
// inter-stage parallelism.
//
// Optional pre/post hooks (Observer) let you log or persist run progress:
// BeforeRun (write the run record), BeforeStage/AfterStage (stage start/end,
// duration, error), AfterRun (final result or error). Pass
// RunOptions{Observer: myObserver} to Run or RunFrom. MultiObserver combines
// several observers into one.
//
// # Suspension at the review gate
//
// The human-review stage returns ErrAwaitingApproval after marking the state
// for suspension. Treat it as "paused, not failed": keep the state and the
// index of the next stage, and when a decision arrives resume by running only
// the remaining stages with the same run ID and a stage offset so observer
// indices match the full pipeline:
//
//	err := pipe.Run(ctx, state, opts)
//	if pipeline.IsAwaitingApproval(err) {
//	    next := pipe.IndexOf(gateName) + 1
//	    // ... once approved ...
//	    err = pipe.RunFrom(ctx, state, next, &pipeline.RunOptions{
//	        RunID:       state.RunID,
//	        Observer:    opts.Observer,
//	        StageOffset: next,
//	    })
//	}
//
// The engine package wraps this dance behind Start/Status/Decide.
package pipeline
