package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dcshock/planpipe/plan"
)

// MultiObserver combines observers so each hook fans out to every observer in
// order. The first hook error stops the fan-out and is returned.
func MultiObserver(observers ...Observer) Observer {
	return &multiObserver{observers: observers}
}

type multiObserver struct {
	observers []Observer
}

func (m *multiObserver) BeforeRun(ctx context.Context, runID, name string, state *plan.RunState) error {
	for _, o := range m.observers {
		if err := o.BeforeRun(ctx, runID, name, state); err != nil {
			return err
		}
	}
	return nil
}

// AfterRun calls every observer even when one fails so persistence and
// logging both see the run end; the errors are joined.
func (m *multiObserver) AfterRun(ctx context.Context, runID string, state *plan.RunState, err error) error {
	var errs []error
	for _, o := range m.observers {
		if hookErr := o.AfterRun(ctx, runID, state, err); hookErr != nil {
			errs = append(errs, hookErr)
		}
	}
	return errors.Join(errs...)
}

func (m *multiObserver) BeforeStage(ctx context.Context, runID string, stageIndex int, stageName string, state *plan.RunState) error {
	for _, o := range m.observers {
		if err := o.BeforeStage(ctx, runID, stageIndex, stageName, state); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiObserver) AfterStage(ctx context.Context, runID string, stageIndex int, stageName string, state *plan.RunState, stageErr error, duration time.Duration) error {
	var errs []error
	for _, o := range m.observers {
		if hookErr := o.AfterStage(ctx, runID, stageIndex, stageName, state, stageErr, duration); hookErr != nil {
			errs = append(errs, hookErr)
		}
	}
	return errors.Join(errs...)
}

// NopObserver is an Observer whose hooks all succeed without side effects.
// Embed it to implement only the hooks you need.
type NopObserver struct{}

func (NopObserver) BeforeRun(context.Context, string, string, *plan.RunState) error { return nil }
func (NopObserver) AfterRun(context.Context, string, *plan.RunState, error) error   { return nil }
func (NopObserver) BeforeStage(context.Context, string, int, string, *plan.RunState) error {
	return nil
}
func (NopObserver) AfterStage(context.Context, string, int, string, *plan.RunState, error, time.Duration) error {
	return nil
}
