// Standard stage wrappers for common pipeline patterns.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dcshock/planpipe/plan"
)

// Identity returns a stage that leaves the run state untouched. Useful as a
// placeholder or an observer boundary.
func Identity(name string) Stage {
	return Stage{Name: name, Run: func(ctx context.Context, state *plan.RunState) error {
		return nil
	}}
}

// Tap returns a stage that calls fn with the state and passes it through
// unchanged. Use for side effects (metrics, debugging) without mutating plans.
func Tap(name string, fn func(context.Context, *plan.RunState)) Stage {
	return Stage{Name: name, Run: func(ctx context.Context, state *plan.RunState) error {
		fn(ctx, state)
		return nil
	}}
}

// Validate returns a stage that passes the state through only if predicate
// returns true; otherwise the run fails with errMsg.
func Validate(name string, predicate func(*plan.RunState) bool, errMsg string) Stage {
	return Stage{Name: name, Run: func(ctx context.Context, state *plan.RunState) error {
		if !predicate(state) {
			if errMsg == "" {
				errMsg = "validation failed"
			}
			return fmt.Errorf("%s", errMsg)
		}
		return nil
	}}
}

// WithTimeout wraps inner so it runs with a context deadline of now+timeout.
// If inner does not return before the deadline, context.DeadlineExceeded is
// returned and the run fails.
func WithTimeout(inner Stage, timeout time.Duration) Stage {
	run := inner.Run
	inner.Run = func(ctx context.Context, state *plan.RunState) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return run(ctx, state)
	}
	return inner
}
