package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nvasquez/survey-generator/internal/matching"
	"github.com/nvasquez/survey-generator/internal/types"
)

// Examples stores golden examples with their embeddings in Postgres and
// serves nearest-neighbor queries through pgvector's cosine operator. It
// implements both matching.VectorIndex and matching.ExampleSource.
type Examples struct {
	pool *pgxpool.Pool
}

// Add stores one example, assigning id and creation time when unset. The
// insertion order recorded by the position column is the similarity
// tie-break during retrieval.
func (x *Examples) Add(ctx context.Context, ex types.GoldenExample) (*types.GoldenExample, error) {
	if len(ex.Embedding) == 0 {
		return nil, errors.New("golden example has no embedding")
	}
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	survey, err := json.Marshal(ex.Survey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode survey: %w", err)
	}

	err = x.pool.QueryRow(ctx,
		`INSERT INTO golden_examples (id, rfq_text, survey, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING position`,
		ex.ID, ex.RFQText, survey, pgvector.NewVector(ex.Embedding), ex.CreatedAt,
	).Scan(&ex.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to store golden example: %w", err)
	}
	return &ex, nil
}

// AddBatch stores many examples in one transaction and returns how many rows
// were inserted. Examples carrying an id that already exists are skipped, so
// reseeding from the same file is idempotent.
func (x *Examples) AddBatch(ctx context.Context, examples []types.GoldenExample) (int, error) {
	if len(examples) == 0 {
		return 0, nil
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, ex := range examples {
		if len(ex.Embedding) == 0 {
			return 0, fmt.Errorf("golden example %d has no embedding", i)
		}
		if ex.ID == uuid.Nil {
			ex.ID = uuid.New()
		}
		if ex.CreatedAt.IsZero() {
			ex.CreatedAt = time.Now().UTC()
		}
		survey, err := json.Marshal(ex.Survey)
		if err != nil {
			return 0, fmt.Errorf("failed to encode survey %d: %w", i, err)
		}

		batch.Queue(
			`INSERT INTO golden_examples (id, rfq_text, survey, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			ex.ID, ex.RFQText, survey, pgvector.NewVector(ex.Embedding), ex.CreatedAt)
	}

	inserted := 0
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to store golden example %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	br.Close()

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// NearestNeighbors returns the k stored examples closest to the query vector
// by cosine similarity, ties broken by insertion order.
func (x *Examples) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]matching.Neighbor, error) {
	if k <= 0 {
		return []matching.Neighbor{}, nil
	}

	rows, err := x.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM golden_examples
		 ORDER BY embedding <=> $1, position
		 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest neighbors: %w", err)
	}
	defer rows.Close()

	neighbors := []matching.Neighbor{}
	for rows.Next() {
		var n matching.Neighbor
		if err := rows.Scan(&n.ID, &n.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read neighbors: %w", err)
	}
	return neighbors, nil
}

// ExampleByID resolves a stored example. The embedding column stays in the
// database; retrieval only needs the text, survey, and position.
func (x *Examples) ExampleByID(ctx context.Context, id uuid.UUID) (*types.GoldenExample, error) {
	var (
		ex     types.GoldenExample
		survey []byte
	)
	err := x.pool.QueryRow(ctx,
		`SELECT id, rfq_text, survey, position, created_at
		 FROM golden_examples WHERE id = $1`,
		id,
	).Scan(&ex.ID, &ex.RFQText, &survey, &ex.Position, &ex.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, matching.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load golden example: %w", err)
	}

	if err := json.Unmarshal(survey, &ex.Survey); err != nil {
		return nil, fmt.Errorf("failed to decode survey for example %s: %w", id, err)
	}
	return &ex, nil
}

// Count returns the number of stored examples.
func (x *Examples) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM golden_examples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count golden examples: %w", err)
	}
	return n, nil
}
