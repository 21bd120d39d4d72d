package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is an in-process Recorder. Each run gets its own bucket with its
// own lock; the top-level lock guards only bucket creation, so appends from
// different runs proceed in parallel.
type MemoryLog struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*runLog
}

type runLog struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryLog returns an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{runs: make(map[uuid.UUID]*runLog)}
}

func (l *MemoryLog) bucket(runID uuid.UUID) *runLog {
	l.mu.RLock()
	b, ok := l.runs[runID]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.runs[runID]; ok {
		return b
	}
	b = &runLog{}
	l.runs[runID] = b
	return b
}

// Record appends an entry to the run's bucket and returns the stored record.
func (l *MemoryLog) Record(ctx context.Context, e Entry) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	b := l.bucket(e.RunID)
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := Record{
		ID:        uuid.New(),
		Seq:       len(b.records) + 1,
		CreatedAt: time.Now().UTC(),
		Entry:     e,
	}
	b.records = append(b.records, rec)
	return rec, nil
}

// ListByRun returns a copy of the run's records in append order. A run with
// no records yields an empty slice, not an error.
func (l *MemoryLog) ListByRun(ctx context.Context, runID uuid.UUID) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	b, ok := l.runs[runID]
	l.mu.RUnlock()
	if !ok {
		return []Record{}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out, nil
}
