package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nvasquez/survey-generator/internal/pipeline"
)

const uniqueViolation = "23505"

// CreateRun stores a new run. The id must not already exist.
func (s *Store) CreateRun(ctx context.Context, run *pipeline.WorkflowRun) error {
	artifacts, err := json.Marshal(run.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_runs
		   (id, step, status, rfq_text, rfq_source, seq, max_percent,
		    plan_rejections, regen_attempts, failure_reason, last_audit_id,
		    artifacts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.Step, run.Status, run.RFQText, run.RFQSource, run.Seq,
		run.MaxPercent, run.PlanRejections, run.RegenAttempts, run.FailureReason,
		uuidOrNil(run.LastAuditID), artifacts, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("run %s already exists", run.ID)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SaveRun overwrites the stored state of an existing run.
func (s *Store) SaveRun(ctx context.Context, run *pipeline.WorkflowRun) error {
	artifacts, err := json.Marshal(run.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE workflow_runs
		 SET step = $2, status = $3, seq = $4, max_percent = $5,
		     plan_rejections = $6, regen_attempts = $7, failure_reason = $8,
		     last_audit_id = $9, artifacts = $10, updated_at = $11
		 WHERE id = $1`,
		run.ID, run.Step, run.Status, run.Seq, run.MaxPercent,
		run.PlanRejections, run.RegenAttempts, run.FailureReason,
		uuidOrNil(run.LastAuditID), artifacts, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save run %s: %w", run.ID, pipeline.ErrRunNotFound)
	}
	return nil
}

// LoadRun returns the stored state of a run.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*pipeline.WorkflowRun, error) {
	var (
		run         pipeline.WorkflowRun
		artifacts   []byte
		lastAuditID *uuid.UUID
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, step, status, rfq_text, rfq_source, seq, max_percent,
		        plan_rejections, regen_attempts, failure_reason, last_audit_id,
		        artifacts, created_at, updated_at
		 FROM workflow_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Step, &run.Status, &run.RFQText, &run.RFQSource,
		&run.Seq, &run.MaxPercent, &run.PlanRejections, &run.RegenAttempts,
		&run.FailureReason, &lastAuditID, &artifacts, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load run %s: %w", id, pipeline.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if lastAuditID != nil {
		run.LastAuditID = *lastAuditID
	}
	if err := json.Unmarshal(artifacts, &run.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts for run %s: %w", id, err)
	}
	return &run, nil
}

// AppendTransition records one transition. A step replayed after a crash
// between the transition append and the run save writes the same (run, seq)
// pair again; the upsert lets the replayed outcome overwrite its orphan.
func (s *Store) AppendTransition(ctx context.Context, t pipeline.Transition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_transitions (run_id, seq, from_step, to_step, status, percent, note, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (run_id, seq) DO UPDATE
		 SET from_step = EXCLUDED.from_step, to_step = EXCLUDED.to_step,
		     status = EXCLUDED.status, percent = EXCLUDED.percent,
		     note = EXCLUDED.note, at = EXCLUDED.at`,
		t.RunID, t.Seq, t.From, t.To, t.Status, t.Percent, t.Note, t.At,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// ListTransitions returns the run's transitions in ascending Seq order.
func (s *Store) ListTransitions(ctx context.Context, runID uuid.UUID) ([]pipeline.Transition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, seq, from_step, to_step, status, percent, note, at
		 FROM run_transitions WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []pipeline.Transition{}
	for rows.Next() {
		var t pipeline.Transition
		if err := rows.Scan(&t.RunID, &t.Seq, &t.From, &t.To, &t.Status, &t.Percent, &t.Note, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}
	return transitions, nil
}

func uuidOrNil(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
