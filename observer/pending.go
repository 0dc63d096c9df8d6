package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dcshock/planpipe/plan"
)

// PendingRun is a persisted run waiting at the review gate.
type PendingRun struct {
	RunID     string
	Pipeline  string
	State     *plan.RunState
	UpdatedAt time.Time
}

// PendingStore queries the plan_run table for runs awaiting a decision, so an
// approval UI or on-call tool can list them without talking to the engine.
type PendingStore struct {
	db DB
}

// NewPendingStore returns a store reading from the given database.
func NewPendingStore(db DB) *PendingStore {
	return &PendingStore{db: db}
}

// Pending returns every run awaiting approval, oldest first.
func (s *PendingStore) Pending(ctx context.Context) ([]PendingRun, error) {
	rows, err := s.db.Query(ctx, `
		SELECT run_id, pipeline, state, updated_at
		FROM plan_run
		WHERE status = $1
		ORDER BY updated_at`,
		string(plan.StatusAwaitingApproval))
	if err != nil {
		return nil, fmt.Errorf("query pending runs: %w", err)
	}
	defer rows.Close()

	var out []PendingRun
	for rows.Next() {
		var (
			run       PendingRun
			stateJSON []byte
		)
		if err := rows.Scan(&run.RunID, &run.Pipeline, &stateJSON, &run.UpdatedAt); err != nil {
			return nil, err
		}
		if len(stateJSON) > 0 {
			run.State = &plan.RunState{}
			if err := json.Unmarshal(stateJSON, run.State); err != nil {
				return nil, fmt.Errorf("unmarshal state for run %s: %w", run.RunID, err)
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Get returns the persisted state of one run, or nil when unknown.
func (s *PendingStore) Get(ctx context.Context, runID string) (*plan.RunState, error) {
	var stateJSON []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM plan_run WHERE run_id = $1`, runID).Scan(&stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state := &plan.RunState{}
	if err := json.Unmarshal(stateJSON, state); err != nil {
		return nil, fmt.Errorf("unmarshal state for run %s: %w", runID, err)
	}
	return state, nil
}
