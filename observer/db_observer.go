package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// DB is the subset of pgxpool.Pool the observer needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBObserver persists run and stage execution to Postgres (plan_run,
// plan_run_stage) so runs can be monitored and pending approvals listed
// outside the engine process.
type DBObserver struct {
	db DB
}

// NewDBObserver returns an observer writing to the given database.
func NewDBObserver(db DB) *DBObserver {
	return &DBObserver{db: db}
}

// BeforeRun upserts the plan_run row with status 'running'. Upsert lets the
// same run be observed again when it resumes past the review gate.
func (o *DBObserver) BeforeRun(ctx context.Context, runID, name string, state *plan.RunState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	_, err = o.db.Exec(ctx, `
		INSERT INTO plan_run (run_id, pipeline, status, state)
		VALUES ($1, $2, 'running', $3)
		ON CONFLICT (run_id) DO UPDATE
		SET status = 'running', state = EXCLUDED.state, updated_at = now()`,
		runID, name, stateJSON)
	return err
}

// AfterRun records the pass outcome: awaiting_approval on suspension, failed
// on error, completed otherwise.
func (o *DBObserver) AfterRun(ctx context.Context, runID string, state *plan.RunState, runErr error) error {
	status := string(plan.StatusCompleted)
	errText := pgtype.Text{}
	switch {
	case pipeline.IsAwaitingApproval(runErr):
		status = string(plan.StatusAwaitingApproval)
	case runErr != nil:
		status = string(plan.StatusFailed)
		errText = pgtype.Text{String: runErr.Error(), Valid: true}
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	_, err = o.db.Exec(ctx, `
		UPDATE plan_run
		SET status = $2, state = $3, error = $4, updated_at = now()
		WHERE run_id = $1`,
		runID, status, stateJSON, errText)
	return err
}

// BeforeStage inserts the plan_run_stage row with status 'running'.
func (o *DBObserver) BeforeStage(ctx context.Context, runID string, stageIndex int, stageName string, _ *plan.RunState) error {
	_, err := o.db.Exec(ctx, `
		INSERT INTO plan_run_stage (run_id, stage_index, stage_name, status)
		VALUES ($1, $2, $3, 'running')
		ON CONFLICT (run_id, stage_index) DO UPDATE
		SET status = 'running', error = NULL`,
		runID, int32(stageIndex), stageName)
	return err
}

// AfterStage records the stage outcome and duration.
func (o *DBObserver) AfterStage(ctx context.Context, runID string, stageIndex int, _ string, _ *plan.RunState, stageErr error, duration time.Duration) error {
	status := "success"
	errText := pgtype.Text{}
	switch {
	case pipeline.IsAwaitingApproval(stageErr):
		status = "suspended"
	case stageErr != nil:
		status = "failed"
		errText = pgtype.Text{String: stageErr.Error(), Valid: true}
	}
	_, err := o.db.Exec(ctx, `
		UPDATE plan_run_stage
		SET status = $3, error = $4, duration_ms = $5
		WHERE run_id = $1 AND stage_index = $2`,
		runID, int32(stageIndex), status, errText,
		pgtype.Int8{Int64: duration.Milliseconds(), Valid: true})
	return err
}

var _ pipeline.Observer = (*DBObserver)(nil)
