// Package observer provides pipeline.Observer implementations: structured
// logging of run and stage progress, and Postgres persistence so runs can be
// monitored and pending approvals listed across processes.
//
// The DB observer expects the following schema:
//
//	CREATE TABLE plan_run (
//	    run_id      text PRIMARY KEY,
//	    pipeline    text NOT NULL,
//	    status      text NOT NULL,
//	    state       jsonb,
//	    error       text,
//	    started_at  timestamptz NOT NULL DEFAULT now(),
//	    updated_at  timestamptz NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE plan_run_stage (
//	    run_id      text NOT NULL REFERENCES plan_run (run_id),
//	    stage_index int  NOT NULL,
//	    stage_name  text NOT NULL,
//	    status      text NOT NULL,
//	    error       text,
//	    duration_ms bigint,
//	    PRIMARY KEY (run_id, stage_index)
//	);
package observer
