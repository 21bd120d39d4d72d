package matching

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvasquez/survey-generator/internal/types"
)

// ErrNotFound is returned when an example id cannot be resolved.
var ErrNotFound = errors.New("golden example not found")

// MemoryIndex is an exact-scan vector index holding golden examples in
// memory. It implements both VectorIndex and ExampleSource.
type MemoryIndex struct {
	mu       sync.RWMutex
	examples []*types.GoldenExample
	byID     map[uuid.UUID]*types.GoldenExample
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byID: make(map[uuid.UUID]*types.GoldenExample)}
}

// Add stores an example, assigning id, position, and creation time when
// unset. Position records insertion order and is the similarity tie-break.
func (x *MemoryIndex) Add(ex types.GoldenExample) *types.GoldenExample {
	x.mu.Lock()
	defer x.mu.Unlock()

	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	ex.Position = len(x.examples)

	stored := ex
	x.examples = append(x.examples, &stored)
	x.byID[stored.ID] = &stored
	return &stored
}

// Len returns the number of stored examples.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.examples)
}

// NearestNeighbors scans every stored example and returns the top k by
// cosine similarity, ties by insertion order.
func (x *MemoryIndex) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		neighbor Neighbor
		position int
	}
	hits := make([]scored, 0, len(x.examples))
	for _, ex := range x.examples {
		hits = append(hits, scored{
			neighbor: Neighbor{ID: ex.ID, Similarity: CosineSimilarity(vector, ex.Embedding)},
			position: ex.Position,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].neighbor.Similarity != hits[j].neighbor.Similarity {
			return hits[i].neighbor.Similarity > hits[j].neighbor.Similarity
		}
		return hits[i].position < hits[j].position
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = h.neighbor
	}
	return out, nil
}

// ExampleByID resolves a stored example by id.
func (x *MemoryIndex) ExampleByID(ctx context.Context, id uuid.UUID) (*types.GoldenExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	ex, ok := x.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ex
	return &cp, nil
}
