// Package audit records every LLM interaction made on behalf of a run.
// Records are append-only: once written they are never mutated or deleted,
// so a failed step can be reconstructed exactly as it was sent and received.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is the caller-supplied portion of an audit record.
type Entry struct {
	RunID        uuid.UUID `json:"run_id"`
	Purpose      string    `json:"purpose"`
	SubPurpose   string    `json:"sub_purpose,omitempty"`
	ModelID      string    `json:"model_id"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	Success      bool      `json:"success"`
	LatencyMs    int64     `json:"latency_ms"`
	InputTokens  int32     `json:"input_tokens"`
	OutputTokens int32     `json:"output_tokens"`
}

// Record is a stored audit entry. Seq is the per-run ordinal assigned at
// append time; ListByRun returns records in ascending Seq order.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Entry
}

// Recorder accepts appends from many concurrent runs. Implementations must
// not serialize independent runs against each other.
type Recorder interface {
	Record(ctx context.Context, e Entry) (Record, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Record, error)
}

// Elapsed converts a call start time to the latency value stored on an Entry.
func Elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
