package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvasquez/survey-generator/internal/audit"
)

// AuditLog is the Postgres audit.Recorder. Per-run sequence numbers are
// assigned by the insert itself, so appends from independent runs never
// contend on anything but the table.
type AuditLog struct {
	pool *pgxpool.Pool
}

// Record appends an entry and returns the stored record with its assigned
// id, per-run sequence number, and timestamp.
func (l *AuditLog) Record(ctx context.Context, e audit.Entry) (audit.Record, error) {
	rec := audit.Record{ID: uuid.New(), Entry: e}

	err := l.pool.QueryRow(ctx,
		`INSERT INTO audit_records
		   (id, run_id, seq, purpose, sub_purpose, model_id, prompt, response,
		    success, latency_ms, input_tokens, output_tokens)
		 VALUES ($1, $2,
		   (SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_records WHERE run_id = $2),
		   $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING seq, created_at`,
		rec.ID, e.RunID, e.Purpose, e.SubPurpose, e.ModelID, e.Prompt, e.Response,
		e.Success, e.LatencyMs, e.InputTokens, e.OutputTokens,
	).Scan(&rec.Seq, &rec.CreatedAt)
	if err != nil {
		return audit.Record{}, fmt.Errorf("failed to record audit entry: %w", err)
	}
	return rec, nil
}

// ListByRun returns the run's records in ascending Seq order. A run with no
// records yields an empty slice, not an error.
func (l *AuditLog) ListByRun(ctx context.Context, runID uuid.UUID) ([]audit.Record, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, run_id, seq, purpose, sub_purpose, model_id, prompt, response,
		        success, latency_ms, input_tokens, output_tokens, created_at
		 FROM audit_records WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []audit.Record{}
	for rows.Next() {
		var rec audit.Record
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Seq, &rec.Purpose,
			&rec.SubPurpose, &rec.ModelID, &rec.Prompt, &rec.Response,
			&rec.Success, &rec.LatencyMs, &rec.InputTokens, &rec.OutputTokens,
			&rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}
	return records, nil
}
