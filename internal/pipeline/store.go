package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrRunNotFound reports a lookup for a run id the store has never seen.
var ErrRunNotFound = errors.New("workflow run not found")

// Store persists run state and the append-only transition log. The engine
// records every transition before executing the next step, so an
// implementation must make SaveRun and AppendTransition durable before
// returning.
type Store interface {
	CreateRun(ctx context.Context, run *WorkflowRun) error
	SaveRun(ctx context.Context, run *WorkflowRun) error
	LoadRun(ctx context.Context, id uuid.UUID) (*WorkflowRun, error)
	AppendTransition(ctx context.Context, t Transition) error
	ListTransitions(ctx context.Context, runID uuid.UUID) ([]Transition, error)
}

// MemoryStore keeps runs and transitions in process memory. It backs tests
// and single-shot CLI invocations that run without a database. Runs are
// stored serialized so callers never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]json.RawMessage
	transitions map[uuid.UUID][]Transition
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[uuid.UUID]json.RawMessage),
		transitions: make(map[uuid.UUID][]Transition),
	}
}

// CreateRun stores a new run. The id must not already exist.
func (s *MemoryStore) CreateRun(ctx context.Context, run *WorkflowRun) error {
	encoded, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = encoded
	return nil
}

// SaveRun overwrites the stored state of an existing run.
func (s *MemoryStore) SaveRun(ctx context.Context, run *WorkflowRun) error {
	encoded, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("save run %s: %w", run.ID, ErrRunNotFound)
	}
	s.runs[run.ID] = encoded
	return nil
}

// LoadRun returns a private copy of the stored run state.
func (s *MemoryStore) LoadRun(ctx context.Context, id uuid.UUID) (*WorkflowRun, error) {
	s.mu.RLock()
	encoded, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load run %s: %w", id, ErrRunNotFound)
	}

	var run WorkflowRun
	if err := json.Unmarshal(encoded, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &run, nil
}

// AppendTransition appends to the run's transition log.
func (s *MemoryStore) AppendTransition(ctx context.Context, t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[t.RunID] = append(s.transitions[t.RunID], t)
	return nil
}

// ListTransitions returns the run's transitions in ascending Seq order.
func (s *MemoryStore) ListTransitions(ctx context.Context, runID uuid.UUID) ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.transitions[runID]
	out := make([]Transition, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
