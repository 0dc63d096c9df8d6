package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// LogObserver logs run and stage progress with slog.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging to the given logger, or
// slog.Default() when nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) BeforeRun(_ context.Context, runID, name string, state *plan.RunState) error {
	o.logger.Info("pipeline starting", "run_id", runID, "pipeline", name, "records", len(state.RawData))
	return nil
}

func (o *LogObserver) AfterRun(_ context.Context, runID string, state *plan.RunState, err error) error {
	switch {
	case pipeline.IsAwaitingApproval(err):
		o.logger.Info("pipeline suspended for review", "run_id", runID,
			"alerts", len(state.Alerts), "escalations", len(state.Escalations))
	case err != nil:
		o.logger.Error("pipeline failed", "run_id", runID, "stage", state.CurrentStage, "error", err)
	default:
		o.logger.Info("pipeline finished", "run_id", runID)
	}
	return nil
}

func (o *LogObserver) BeforeStage(_ context.Context, runID string, stageIndex int, stageName string, _ *plan.RunState) error {
	o.logger.Debug("stage starting", "run_id", runID, "index", stageIndex, "stage", stageName)
	return nil
}

func (o *LogObserver) AfterStage(_ context.Context, runID string, stageIndex int, stageName string, _ *plan.RunState, stageErr error, duration time.Duration) error {
	if stageErr != nil && !pipeline.IsAwaitingApproval(stageErr) {
		o.logger.Error("stage failed", "run_id", runID, "index", stageIndex, "stage", stageName,
			"duration", duration, "error", stageErr)
		return nil
	}
	o.logger.Info("stage finished", "run_id", runID, "index", stageIndex, "stage", stageName, "duration", duration)
	return nil
}

var _ pipeline.Observer = (*LogObserver)(nil)
