// Package matching retrieves golden examples semantically close to an RFQ
// embedding. The matcher composes a vector index (nearest-neighbor search)
// with an example source (id resolution) and enforces the ordering contract:
// descending similarity, ties broken by stored creation order.
package matching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/types"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor is one nearest-neighbor hit from a vector index.
type Neighbor struct {
	ID         uuid.UUID
	Similarity float64
}

// VectorIndex answers nearest-neighbor queries by cosine similarity.
// Read-only from the pipeline's perspective; safe for concurrent use.
type VectorIndex interface {
	NearestNeighbors(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
}

// ExampleSource resolves golden-example ids to full records.
type ExampleSource interface {
	ExampleByID(ctx context.Context, id uuid.UUID) (*types.GoldenExample, error)
}

// Matcher retrieves and orders golden examples for a query embedding.
type Matcher struct {
	index    VectorIndex
	examples ExampleSource
	logger   *zap.Logger
}

// NewMatcher creates a Matcher over the given index and example source.
func NewMatcher(index VectorIndex, examples ExampleSource, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{index: index, examples: examples, logger: logger}
}

// Match returns at most k examples with similarity >= minSimilarity, ordered
// by descending similarity, ties by ascending stored position. An empty
// result is a valid outcome, not an error.
func (m *Matcher) Match(ctx context.Context, embedding []float32, k int, minSimilarity float64) (types.RetrievalResult, error) {
	if k <= 0 {
		return types.RetrievalResult{}, nil
	}

	neighbors, err := m.index.NearestNeighbors(ctx, embedding, k)
	if err != nil {
		return types.RetrievalResult{}, fmt.Errorf("nearest-neighbor query failed: %w", err)
	}

	matches := make([]types.Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Similarity < minSimilarity {
			continue
		}
		ex, err := m.examples.ExampleByID(ctx, n.ID)
		if err != nil {
			return types.RetrievalResult{}, fmt.Errorf("resolving example %s: %w", n.ID, err)
		}
		matches = append(matches, types.Match{Example: ex, Similarity: n.Similarity})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Example.Position < matches[j].Example.Position
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	m.logger.Debug("golden example retrieval",
		zap.Int("candidates", len(neighbors)),
		zap.Int("matched", len(matches)),
		zap.Float64("min_similarity", minSimilarity))

	return types.RetrievalResult{Matches: matches}, nil
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors of
// different lengths or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
