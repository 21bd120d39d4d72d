package types

import (
	"time"

	"github.com/google/uuid"
)

// GoldenExample is a previously vetted RFQ/survey pair with a precomputed
// embedding. Immutable once stored; the pipeline only reads it.
type GoldenExample struct {
	ID        uuid.UUID      `json:"id"`
	RFQText   string         `json:"rfq_text"`
	Survey    SurveyDocument `json:"survey"`
	Embedding []float32      `json:"embedding,omitempty"`
	Position  int            `json:"position"`
	CreatedAt time.Time      `json:"created_at"`
}

// Match pairs a golden example with its similarity to the query embedding.
type Match struct {
	Example    *GoldenExample `json:"example"`
	Similarity float64        `json:"similarity"`
}

// RetrievalResult is an ordered set of matches, descending by similarity,
// ties broken by the example's stored position. Produced fresh per run.
type RetrievalResult struct {
	Matches []Match `json:"matches"`
}

// Len returns the number of retrieved matches.
func (r RetrievalResult) Len() int { return len(r.Matches) }

// IsEmpty reports whether retrieval found nothing above threshold. An empty
// result is valid; generation falls back to the generic prompt template.
func (r RetrievalResult) IsEmpty() bool { return len(r.Matches) == 0 }
